package models

import "time"

type User struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username      string `gorm:"uniqueIndex;not null" json:"username"`
	Password      string `gorm:"not null" json:"-"` // bcrypt hash
	Discriminator string `gorm:"not null" json:"discriminator"`
	Online        bool   `gorm:"not null;default:false" json:"online"`
}

type Friend struct {
	ID       int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   int64 `gorm:"not null;uniqueIndex:idx_friend_pair" json:"userId"`
	FriendID int64 `gorm:"not null;uniqueIndex:idx_friend_pair" json:"friendId"`
}

// Message is immutable once stored; ID and Timestamp come from the store.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}
