package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"dmchat/chaterr"
	"dmchat/models"
)

// CreateMessage validates and stores a message. The id and timestamp are
// assigned here; the user checks and the insert share one transaction.
func (db *DB) CreateMessage(ctx context.Context, senderID, receiverID int64, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, chaterr.Validation("Message content required")
	}
	if senderID <= 0 || receiverID <= 0 {
		return nil, chaterr.Validation("Sender and receiver required")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to save message")
	}
	defer tx.Rollback()

	for _, id := range []int64{senderID, receiverID} {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", id).Scan(&exists); err != nil {
			return nil, chaterr.Persistence(err, "Failed to save message")
		}
		if !exists {
			return nil, chaterr.NotFound("User %d not found", id)
		}
	}

	timestamp := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO messages (sender_id, receiver_id, content, timestamp) VALUES (?, ?, ?, ?)",
		senderID, receiverID, content, timestamp.Format(timeLayout),
	)
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to save message")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to save message")
	}

	if err := tx.Commit(); err != nil {
		return nil, chaterr.Persistence(err, "Failed to save message")
	}

	return &models.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  timestamp,
	}, nil
}

// GetMessages returns the conversation between a and b in either direction,
// oldest first. Ties on timestamp are broken by id.
func (db *DB) GetMessages(ctx context.Context, a, b int64) ([]models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, timestamp
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, a, b, b, a)
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to load messages")
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, chaterr.Persistence(err, "Failed to load messages")
		}
		messages = append(messages, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, chaterr.Persistence(err, "Failed to load messages")
	}
	return messages, nil
}

func (db *DB) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, sender_id, receiver_id, content, timestamp FROM messages WHERE id = ?", id)

	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chaterr.NotFound("Message %d not found", id)
	}
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to load message")
	}
	return m, nil
}

// DeleteMessage removes the row for good. Deleting a missing id is not an
// error.
func (db *DB) DeleteMessage(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id); err != nil {
		return chaterr.Persistence(err, "Failed to delete message")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*models.Message, error) {
	var m models.Message
	var timestampStr string
	if err := s.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &timestampStr); err != nil {
		return nil, err
	}

	timestamp, err := time.Parse(timeLayout, timestampStr)
	if err != nil {
		return nil, err
	}
	m.Timestamp = timestamp

	return &m, nil
}
