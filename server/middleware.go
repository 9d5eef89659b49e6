package server

import (
	"context"
	"net/http"

	"dmchat/chaterr"
)

const (
	cookieName   = "dmchat-session"
	cookieUserID = "user_id"
)

type contextKey int

const userIDKey contextKey = iota

// identity returns the logged-in user id from the session cookie, or 0.
func (s *Server) identity(r *http.Request) int64 {
	session, err := s.cookies.Get(r, cookieName)
	if err != nil {
		return 0
	}
	id, ok := session.Values[cookieUserID].(int64)
	if !ok || id <= 0 {
		return 0
	}
	return id
}

// requireLogin rejects requests without a login cookie and puts the user id
// into the request context.
func (s *Server) requireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := s.identity(r)
		if id == 0 {
			writeError(w, chaterr.Authorization("Not logged in"), http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, id)
		next(w, r.WithContext(ctx))
	}
}

func currentUserID(r *http.Request) int64 {
	id, _ := r.Context().Value(userIDKey).(int64)
	return id
}
