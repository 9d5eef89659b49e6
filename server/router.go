package server

import (
	"github.com/sirupsen/logrus"

	"dmchat/models"
	"dmchat/presence"
	"dmchat/protocol"
)

// Pusher is a registered connection that accepts outbound frames without
// blocking.
type Pusher interface {
	Push(frame []byte) bool
}

// Directory is the lookup side of the presence registry.
type Directory interface {
	Lookup(userID int64) (presence.Conn, bool)
}

// Router pushes stored messages to whichever participants are online.
type Router struct {
	directory Directory
}

func NewRouter(directory Directory) *Router {
	return &Router{directory: directory}
}

// Deliver sends msg to the sender's and receiver's live connections, once
// each. Offline participants are skipped; they read the message from the
// store later. Deliver never fails.
func (r *Router) Deliver(msg *models.Message) int {
	frame, err := protocol.Delivery(msg)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Deliver",
			"message_id": msg.ID,
		}).WithError(err).Error("Failed to encode message")
		return 0
	}

	recipients := []int64{msg.SenderID}
	if msg.ReceiverID != msg.SenderID {
		recipients = append(recipients, msg.ReceiverID)
	}

	delivered := 0
	for _, userID := range recipients {
		conn, ok := r.directory.Lookup(userID)
		if !ok {
			continue
		}
		pusher, ok := conn.(Pusher)
		if !ok {
			continue
		}
		if pusher.Push(frame) {
			delivered++
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Deliver",
		"message_id": msg.ID,
		"delivered":  delivered,
	}).Debug("Message routed")

	return delivered
}
