package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dmchat/models"
)

// timeLayout is fixed width so that text ordering in SQLite matches
// chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB is the message store plus the user and friend directory. Messages go
// through database/sql; users and friends go through gorm on the same pool.
type DB struct {
	conn *sql.DB
	orm  *gorm.DB
}

func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	orm, err := gorm.Open(sqlite.Dialector{Conn: conn}, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, orm: orm}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	if err := db.orm.AutoMigrate(&models.User{}, &models.Friend{}); err != nil {
		return err
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			receiver_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, timestamp)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	// Nobody is connected at startup.
	_, err := db.conn.Exec("UPDATE users SET online = 0 WHERE online <> 0")
	return err
}
