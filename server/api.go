package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"dmchat/chaterr"
	"dmchat/db"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type friendRequest struct {
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

type messageRequest struct {
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
}

type errorBody struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Debug("Failed to write response")
	}
}

// writeError answers with the error body. A zero status is derived from the
// error kind.
func writeError(w http.ResponseWriter, err error, status int) {
	kind := chaterr.KindOf(err)
	if status == 0 {
		status = statusFor(err)
	}
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).Error("Request failed")
	}

	body := errorBody{Message: chaterr.Message(err)}
	if kind != 0 {
		body.Kind = kind.String()
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	if errors.Is(err, db.ErrUserExists) {
		return http.StatusConflict
	}
	switch chaterr.KindOf(err) {
	case chaterr.KindValidation, chaterr.KindProtocol:
		return http.StatusBadRequest
	case chaterr.KindAuthorization:
		return http.StatusForbidden
	case chaterr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		return chaterr.Validation("Invalid request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, chaterr.Validation("Invalid %s", name)
	}
	return id, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, 0)
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	if err := s.saveLogin(w, r, user.ID); err != nil {
		writeError(w, err, 0)
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "handleRegister",
		"user_id":  user.ID,
	}).Info("User registered")
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, 0)
		return
	}

	user, err := s.store.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		status := 0
		if chaterr.KindOf(err) == chaterr.KindAuthorization {
			status = http.StatusUnauthorized
		}
		writeError(w, err, status)
		return
	}

	if err := s.saveLogin(w, r, user.ID); err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.cookies.Get(r, cookieName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		writeError(w, chaterr.Persistence(err, "Failed to log out"), 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) saveLogin(w http.ResponseWriter, r *http.Request, userID int64) error {
	session, _ := s.cookies.Get(r, cookieName)
	session.Values[cookieUserID] = userID
	if err := session.Save(r, w); err != nil {
		return chaterr.Persistence(err, "Failed to save session")
	}
	return nil
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), currentUserID(r))
	if err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := s.store.GetFriends(r.Context(), currentUserID(r))
	if err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, friends)
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	var req friendRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, 0)
		return
	}
	if req.Username == "" || req.Discriminator == "" {
		writeError(w, chaterr.Validation("Username and discriminator required"), 0)
		return
	}

	friend, err := s.store.GetUserByTag(r.Context(), req.Username, req.Discriminator)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	if err := s.store.AddFriend(r.Context(), currentUserID(r), friend.ID); err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Friend added successfully"})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	friendID, err := pathID(r, "friendId")
	if err != nil {
		writeError(w, err, 0)
		return
	}

	messages, err := s.store.GetMessages(r.Context(), currentUserID(r), friendID)
	if err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// handleCreateMessage stores a message from the caller and then routes it
// to any live connections, the same path the websocket send takes.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err, 0)
		return
	}

	msg, err := s.store.CreateMessage(r.Context(), currentUserID(r), req.ReceiverID, req.Content)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	s.router.Deliver(msg)
	writeJSON(w, http.StatusCreated, msg)
}

// handleDeleteMessage removes a message the caller sent or received.
// Deleting an id that no longer exists succeeds.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "messageId")
	if err != nil {
		writeError(w, err, 0)
		return
	}

	msg, err := s.store.GetMessage(r.Context(), messageID)
	switch {
	case errors.Is(err, chaterr.ErrNotFound):
		writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
		return
	case err != nil:
		writeError(w, err, 0)
		return
	}

	userID := currentUserID(r)
	if msg.SenderID != userID && msg.ReceiverID != userID {
		writeError(w, chaterr.Authorization("Not a participant of this message"), 0)
		return
	}

	if err := s.store.DeleteMessage(r.Context(), messageID); err != nil {
		writeError(w, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}
