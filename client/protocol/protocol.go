package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame types
const (
	TypeAuth        = "auth"
	TypeMessage     = "message"
	TypePing        = "ping"
	TypeAuthSuccess = "auth_success"
	TypePong        = "pong"
	TypeError       = "error"

	// TypeClosed is raised locally when the websocket goes away.
	TypeClosed = "closed"
)

// User is an account as returned by the HTTP API
type User struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Online        bool   `json:"online"`
}

// Tag returns the username#discriminator handle used to add friends
func (u User) Tag() string {
	return u.Username + "#" + u.Discriminator
}

// Message represents a stored chat message
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// Peer returns the other participant from self's point of view
func (m Message) Peer(self int64) int64 {
	if m.SenderID == self {
		return m.ReceiverID
	}
	return m.SenderID
}

// ErrorData is the payload of an error frame or a failed API call
type ErrorData struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// CloseInfo is the payload of a TypeClosed event
type CloseInfo struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encode(msgType string, data any) ([]byte, error) {
	env := envelope{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// APIError is a non-2xx answer from the server
type APIError struct {
	Status int
	ErrorData
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}
