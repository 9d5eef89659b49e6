package db

import (
	"context"

	"gorm.io/gorm"

	"dmchat/chaterr"
	"dmchat/models"
)

// AddFriend links both users to each other in one transaction.
func (db *DB) AddFriend(ctx context.Context, userID, friendID int64) error {
	if userID == friendID {
		return chaterr.Validation("Cannot add yourself as a friend")
	}

	already, err := db.AreFriends(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if already {
		return chaterr.Validation("Already friends")
	}

	err = db.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pair := []models.Friend{
			{UserID: userID, FriendID: friendID},
			{UserID: friendID, FriendID: userID},
		}
		return tx.Create(&pair).Error
	})
	if err != nil {
		return chaterr.Persistence(err, "Failed to add friend")
	}
	return nil
}

func (db *DB) AreFriends(ctx context.Context, userID, friendID int64) (bool, error) {
	var count int64
	err := db.orm.WithContext(ctx).Model(&models.Friend{}).
		Where("user_id = ? AND friend_id = ?", userID, friendID).
		Count(&count).Error
	if err != nil {
		return false, chaterr.Persistence(err, "Failed to load friends")
	}
	return count > 0, nil
}

func (db *DB) GetFriends(ctx context.Context, userID int64) ([]models.User, error) {
	friends := []models.User{}
	err := db.orm.WithContext(ctx).
		Joins("JOIN friends ON friends.friend_id = users.id").
		Where("friends.user_id = ?", userID).
		Order("users.username ASC").
		Find(&friends).Error
	if err != nil {
		return nil, chaterr.Persistence(err, "Failed to load friends")
	}
	return friends, nil
}
