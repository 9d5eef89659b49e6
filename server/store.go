package server

import (
	"context"

	"dmchat/models"
)

// Store is the persistence the server needs. *db.DB implements it.
type Store interface {
	CreateMessage(ctx context.Context, senderID, receiverID int64, content string) (*models.Message, error)
	GetMessages(ctx context.Context, a, b int64) ([]models.Message, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	DeleteMessage(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByTag(ctx context.Context, username, discriminator string) (*models.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	SetUserOnline(ctx context.Context, id int64, online bool) error

	AddFriend(ctx context.Context, userID, friendID int64) error
	GetFriends(ctx context.Context, userID int64) ([]models.User, error)
}
