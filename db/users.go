package db

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"dmchat/chaterr"
	"dmchat/models"
)

var ErrUserExists = errors.New("user already exists")

// CreateUser stores a new user with a bcrypt password hash and a random
// six digit discriminator.
func (db *DB) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, chaterr.Validation("Username and password required")
	}

	var taken int64
	if err := db.orm.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&taken).Error; err != nil {
		return nil, chaterr.Persistence(err, "Failed to create user")
	}
	if taken > 0 {
		return nil, &chaterr.Error{Kind: chaterr.KindValidation, Message: "Username already exists", Err: ErrUserExists}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, chaterr.Validation("Invalid password")
	}

	user := &models.User{
		Username:      username,
		Password:      string(hashed),
		Discriminator: strconv.Itoa(rand.Intn(900000) + 100000),
	}

	err = db.orm.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, &chaterr.Error{Kind: chaterr.KindValidation, Message: "Username already exists", Err: ErrUserExists}
	}
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to create user")
	}
	return user, nil
}

// AuthenticateUser checks a username/password pair. Unknown users and wrong
// passwords produce the same error.
func (db *DB) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := db.orm.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, chaterr.Authorization("Invalid credentials")
	}
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to authenticate")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, chaterr.Authorization("Invalid credentials")
	}
	return &user, nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := db.orm.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, chaterr.NotFound("User %d not found", id)
	}
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to load user")
	}
	return &user, nil
}

// GetUserByTag finds a user by the username#discriminator pair people share
// to add each other.
func (db *DB) GetUserByTag(ctx context.Context, username, discriminator string) (*models.User, error) {
	var user models.User
	err := db.orm.WithContext(ctx).
		Where("username = ? AND discriminator = ?", username, discriminator).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, chaterr.NotFound("User not found")
	}
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to load user")
	}
	return &user, nil
}

func (db *DB) UserExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := db.orm.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, chaterr.Persistence(err, "Failed to load user")
	}
	return count > 0, nil
}

// SetUserOnline writes the presence flag. Only the presence side-effects of
// the websocket sessions call this.
func (db *DB) SetUserOnline(ctx context.Context, id int64, online bool) error {
	err := db.orm.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("online", online).Error
	if err != nil {
		return chaterr.Persistence(err, "Failed to update status")
	}
	return nil
}
