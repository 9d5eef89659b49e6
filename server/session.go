package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dmchat/chaterr"
	"dmchat/protocol"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one websocket connection from upgrade to close. The read side
// runs on the HTTP handler goroutine, writes go through the send queue and
// writeLoop.
type Session struct {
	ID string

	srv      *Server
	ws       *websocket.Conn
	identity int64 // user id from the login cookie, 0 when absent

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	userID   int64
	send     chan []byte
	errCount int

	// close code used when the session ends itself
	stopCode   int
	stopReason string

	closeOnce  sync.Once
	writerDone chan struct{}
}

func newSession(srv *Server, ws *websocket.Conn, identity int64) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         uuid.New().String(),
		srv:        srv,
		ws:         ws,
		identity:   identity,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateConnecting,
		send:       make(chan []byte, srv.config.SendQueue),
		stopCode:   websocket.CloseNormalClosure,
		writerDone: make(chan struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) logger() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"session": s.ID,
		"remote":  s.ws.RemoteAddr().String(),
	})
}

// run drives the session until the transport goes away. It returns after
// the session reached StateClosed and was deregistered.
func (s *Session) run() {
	go s.writeLoop()

	s.mu.Lock()
	s.state = StateAuthenticating
	s.mu.Unlock()

	s.readLoop()
	s.finish()
}

func (s *Session) readDeadline() time.Time {
	return time.Now().Add(s.srv.config.PingInterval + s.srv.config.PongTimeout)
}

func (s *Session) readLoop() {
	s.ws.SetReadLimit(s.srv.config.MaxMessageBytes)
	s.ws.SetReadDeadline(s.readDeadline())
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(s.readDeadline())
	})

	for {
		_, frame, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger().WithError(err).Debug("Read failed")
			}
			return
		}
		s.ws.SetReadDeadline(s.readDeadline())

		if stop := s.handleFrame(frame); stop {
			return
		}
	}
}

// handleFrame parses and dispatches one inbound frame. It reports whether
// the session should end.
func (s *Session) handleFrame(frame []byte) bool {
	ev, err := protocol.Parse(frame)
	if err == nil {
		err = s.dispatch(ev)
	}
	if err == nil {
		s.mu.Lock()
		s.errCount = 0
		s.mu.Unlock()
		return false
	}
	return s.fail(err)
}

func (s *Session) dispatch(ev protocol.Event) error {
	state := s.State()

	switch ev := ev.(type) {
	case protocol.PingEvent:
		frame, err := protocol.Pong()
		if err != nil {
			return err
		}
		s.Push(frame)
		return nil

	case protocol.AuthEvent:
		if state != StateAuthenticating {
			return chaterr.Protocol("Already authenticated")
		}
		return s.authenticate(ev)

	case protocol.SendEvent:
		if state != StateActive {
			return chaterr.Protocol("Not authenticated")
		}
		return s.sendMessage(ev)

	default:
		return chaterr.Protocol("Unsupported message type")
	}
}

func (s *Session) authenticate(ev protocol.AuthEvent) error {
	if s.identity != 0 && s.identity != ev.UserID {
		return chaterr.Authorization("User ID does not match login")
	}

	exists, err := s.srv.store.UserExists(s.ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !exists {
		return chaterr.NotFound("User %d not found", ev.UserID)
	}

	s.mu.Lock()
	s.userID = ev.UserID
	s.state = StateActive
	s.mu.Unlock()

	s.srv.registry.Register(ev.UserID, s)
	s.srv.syncPresence(ev.UserID)

	frame, err := protocol.AuthSuccess(ev.UserID)
	if err != nil {
		return err
	}
	s.Push(frame)

	s.logger().WithField("user_id", ev.UserID).Info("User authenticated")
	return nil
}

func (s *Session) sendMessage(ev protocol.SendEvent) error {
	userID := s.UserID()
	if ev.SenderID != userID {
		return chaterr.Authorization("Unauthorized")
	}

	msg, err := s.srv.store.CreateMessage(s.ctx, ev.SenderID, ev.ReceiverID, ev.Content)
	if err != nil {
		return err
	}

	s.logger().WithFields(logrus.Fields{
		"message_id":  msg.ID,
		"sender_id":   msg.SenderID,
		"receiver_id": msg.ReceiverID,
	}).Debug("Message stored")

	s.srv.router.Deliver(msg)
	return nil
}

// fail reports err to the peer and counts it toward the consecutive error
// cap. Store failures are not the peer's fault and are not counted.
func (s *Session) fail(err error) bool {
	entry := s.logger().WithError(err)
	if chaterr.KindOf(err) == chaterr.KindPersistence || chaterr.KindOf(err) == 0 {
		entry.Error("Event failed")
	} else {
		entry.Debug("Event rejected")
	}

	if frame, encErr := protocol.Error(err); encErr == nil {
		s.Push(frame)
	}

	if chaterr.KindOf(err) == chaterr.KindPersistence {
		return false
	}

	limit := s.srv.config.MaxProtocolErrors

	s.mu.Lock()
	defer s.mu.Unlock()
	s.errCount++
	if s.errCount < limit {
		return false
	}

	s.stopCode = websocket.ClosePolicyViolation
	s.stopReason = "Too many protocol errors"
	s.logger().WithField("errors", s.errCount).Warn("Closing session after repeated errors")
	return true
}

// Push queues a frame for the peer without blocking. A session whose queue
// is full is closed rather than allowed to stall its senders.
func (s *Session) Push(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}

	select {
	case s.send <- frame:
		return true
	default:
		s.logger().Warn("Send queue full, closing session")
		s.CloseWith(websocket.ClosePolicyViolation, "Too slow")
		return false
	}
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)

	for frame := range s.send {
		s.ws.SetWriteDeadline(time.Now().Add(s.srv.config.WriteTimeout))
		if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			s.logger().WithError(err).Debug("Write failed")
			s.Close()
			for range s.send {
			}
			return
		}
	}

	// Queue drained after finish: say goodbye with the session's own code.
	s.mu.Lock()
	code, reason := s.stopCode, s.stopReason
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		s.cancel()
		s.closeTransport(code, reason)
	})
}

// Close signals the session to end without waiting for it. The presence
// registry calls it on eviction.
func (s *Session) Close() {
	s.CloseWith(websocket.CloseNormalClosure, "")
}

func (s *Session) CloseWith(code int, reason string) {
	s.closeOnce.Do(func() {
		s.cancel()
		go s.closeTransport(code, reason)
	})
}

func (s *Session) closeTransport(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.srv.config.WriteTimeout))
	s.ws.Close()
}

// probe sends a liveness ping. A failed write closes the session; a missing
// pong is caught by the read deadline.
func (s *Session) probe() {
	err := s.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.srv.config.WriteTimeout))
	if err != nil {
		s.logger().WithError(err).Debug("Ping failed")
		s.Close()
	}
}

// finish moves the session to StateClosed, flushes the send queue and
// releases the user's registration.
func (s *Session) finish() {
	s.mu.Lock()
	prev := s.state
	s.state = StateClosed
	userID := s.userID
	close(s.send)
	s.mu.Unlock()

	<-s.writerDone
	s.cancel()

	if prev == StateActive {
		s.srv.registry.Unregister(userID, s)
		s.srv.syncPresence(userID)
		s.logger().WithField("user_id", userID).Info("User disconnected")
	} else {
		s.logger().Info("Connection closed")
	}
}
