// Package protocol is the websocket wire format: a tagged JSON envelope
// {"type": ..., "data": ...} decoded into a closed set of event types.
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"

	"dmchat/chaterr"
	"dmchat/models"
)

const (
	TypeAuth        = "auth"
	TypeMessage     = "message"
	TypePing        = "ping"
	TypeAuthSuccess = "auth_success"
	TypePong        = "pong"
	TypeError       = "error"
)

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is an inbound client event: AuthEvent, SendEvent or PingEvent.
type Event interface {
	eventType() string
}

type AuthEvent struct {
	UserID int64
}

type SendEvent struct {
	SenderID   int64
	ReceiverID int64
	Content    string
}

type PingEvent struct{}

func (AuthEvent) eventType() string { return TypeAuth }
func (SendEvent) eventType() string { return TypeMessage }
func (PingEvent) eventType() string { return TypePing }

// TypeOf returns the wire type of an event.
func TypeOf(ev Event) string {
	return ev.eventType()
}

type AuthData struct {
	UserID int64 `json:"userId"`
}

type ErrorData struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// Parse decodes one frame. Broken JSON and unknown types are protocol
// errors; missing message fields are validation errors.
func Parse(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, chaterr.Protocol("Invalid message format")
	}

	switch env.Type {
	case TypeAuth:
		var data struct {
			UserID json.RawMessage `json:"userId"`
		}
		if err := unmarshalData(env.Data, &data); err != nil {
			return nil, chaterr.Protocol("Invalid user ID")
		}
		id, ok := parseID(data.UserID)
		if !ok {
			return nil, chaterr.Protocol("Invalid user ID")
		}
		return AuthEvent{UserID: id}, nil

	case TypeMessage:
		var data struct {
			SenderID   json.RawMessage `json:"senderId"`
			ReceiverID json.RawMessage `json:"receiverId"`
			Content    *string         `json:"content"`
		}
		if err := unmarshalData(env.Data, &data); err != nil {
			return nil, chaterr.Validation("Invalid message data")
		}
		sender, ok := parseID(data.SenderID)
		if !ok {
			return nil, chaterr.Validation("Invalid sender ID")
		}
		receiver, ok := parseID(data.ReceiverID)
		if !ok {
			return nil, chaterr.Validation("Invalid receiver ID")
		}
		if data.Content == nil {
			return nil, chaterr.Validation("Message content required")
		}
		return SendEvent{SenderID: sender, ReceiverID: receiver, Content: *data.Content}, nil

	case TypePing:
		return PingEvent{}, nil

	case "":
		return nil, chaterr.Protocol("Missing message type")

	default:
		return nil, chaterr.Protocol("Unknown message type %q", env.Type)
	}
}

func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return chaterr.Protocol("missing data")
	}
	return json.Unmarshal(raw, v)
}

// parseID accepts only a bare positive JSON integer: no strings, fractions
// or exponents.
func parseID(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Encode builds an envelope frame around data. A nil data omits the field.
func Encode(msgType string, data any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func AuthSuccess(userID int64) ([]byte, error) {
	return Encode(TypeAuthSuccess, AuthData{UserID: userID})
}

func Delivery(msg *models.Message) ([]byte, error) {
	return Encode(TypeMessage, msg)
}

func Pong() ([]byte, error) {
	return Encode(TypePong, nil)
}

// Error renders err for the peer. Persistence causes stay server-side.
func Error(err error) ([]byte, error) {
	data := ErrorData{Message: chaterr.Message(err)}
	if kind := chaterr.KindOf(err); kind != 0 {
		data.Kind = kind.String()
	}
	return Encode(TypeError, data)
}
