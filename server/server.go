package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"dmchat/presence"
)

type Server struct {
	store      Store
	config     *ServerConfig
	registry   *presence.Registry
	router     *Router
	supervisor *Supervisor
	cookies    *sessions.CookieStore
	upgrader   websocket.Upgrader
	handler    http.Handler
	httpServer *http.Server

	// slots bounds the number of concurrent sessions.
	slots chan struct{}

	mu       sync.Mutex
	open     map[*Session]struct{}
	wg       sync.WaitGroup
	shutdown bool
}

type ServerConfig struct {
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	PongTimeout       time.Duration
	MaxSessions       int
	MaxProtocolErrors int
	SendQueue         int
	MaxMessageBytes   int64
	SessionSecret     string
	RequireLogin      bool
}

func New(store Store, config *ServerConfig) *Server {
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.PingInterval == 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.PongTimeout == 0 {
		config.PongTimeout = 10 * time.Second
	}
	if config.MaxSessions == 0 {
		config.MaxSessions = 1024
	}
	if config.MaxProtocolErrors == 0 {
		config.MaxProtocolErrors = 10
	}
	if config.SendQueue == 0 {
		config.SendQueue = 64
	}
	if config.MaxMessageBytes == 0 {
		config.MaxMessageBytes = 64 * 1024
	}

	registry := presence.NewRegistry()

	cookies := sessions.NewCookieStore([]byte(config.SessionSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(7 * 24 * time.Hour.Seconds()),
	}

	s := &Server{
		store:    store,
		config:   config,
		registry: registry,
		router:   NewRouter(registry),
		cookies:  cookies,
		slots:    make(chan struct{}, config.MaxSessions),
		open:     make(map[*Session]struct{}),
	}
	s.supervisor = NewSupervisor(config.PingInterval, s.probeTargets)
	s.handler = s.routes()

	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ws", s.handleConnection).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/login", s.handleLogin).Methods("POST")
	api.HandleFunc("/logout", s.handleLogout).Methods("POST")
	api.HandleFunc("/user", s.requireLogin(s.handleUser)).Methods("GET")
	api.HandleFunc("/friends", s.requireLogin(s.handleGetFriends)).Methods("GET")
	api.HandleFunc("/friends", s.requireLogin(s.handleAddFriend)).Methods("POST")
	api.HandleFunc("/messages/{friendId}", s.requireLogin(s.handleGetMessages)).Methods("GET")
	api.HandleFunc("/messages", s.requireLogin(s.handleCreateMessage)).Methods("POST")
	api.HandleFunc("/messages/{messageId}", s.requireLogin(s.handleDeleteMessage)).Methods("DELETE")

	return r
}

// Handler exposes the HTTP and websocket routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadTimeout,
		MaxHeaderBytes:    1 << 20,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.supervisor.Start()

	logrus.WithFields(logrus.Fields{
		"function": "Serve",
		"address":  listener.Addr().String(),
	}).Info("Chat server started")

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleConnection upgrades to a websocket and runs the session on this
// goroutine until it closes.
func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	if s.closing() {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	select {
	case s.slots <- struct{}{}:
	default:
		logrus.WithField("remote", r.RemoteAddr).Warn("Session limit reached, refusing connection")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	defer func() { <-s.slots }()

	identity := s.identity(r)
	if s.config.RequireLogin && identity == 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithField("remote", r.RemoteAddr).WithError(err).Debug("Upgrade failed")
		return
	}

	session := newSession(s, ws, identity)
	if !s.track(session) {
		session.CloseWith(websocket.CloseGoingAway, "Server shutting down")
		return
	}
	defer s.untrack(session)

	session.logger().Info("New client connected")
	session.run()
}

func (s *Server) closing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func (s *Server) track(session *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.open[session] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(session *Session) {
	s.mu.Lock()
	delete(s.open, session)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) openSessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Session, 0, len(s.open))
	for session := range s.open {
		list = append(list, session)
	}
	return list
}

func (s *Server) probeTargets() []Prober {
	open := s.openSessions()
	targets := make([]Prober, len(open))
	for i, session := range open {
		targets[i] = session
	}
	return targets
}

// syncPresence persists the user's online flag from the registry. It runs
// on a fresh context so a closing session still records going offline.
func (s *Server) syncPresence(userID int64) {
	err := s.registry.Sync(userID, func(online bool) error {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()
		return s.store.SetUserOnline(ctx, userID, online)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "syncPresence",
			"user_id":  userID,
		}).WithError(err).Warn("Failed to update online status")
	}
}

// Shutdown closes every session with a going-away frame, waits for them to
// finish and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.supervisor.Stop()

	s.mu.Lock()
	s.shutdown = true
	srv := s.httpServer
	s.mu.Unlock()

	for _, session := range s.openSessions() {
		session.CloseWith(websocket.CloseGoingAway, "Server shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	if srv != nil {
		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}

	logrus.WithField("function", "Shutdown").Info("Chat server stopped")
	return err
}

// GetStats returns server statistics as a formatted string
func (s *Server) GetStats() string {
	open := len(s.openSessions())
	users := s.registry.Users()

	names := make([]string, len(users))
	for i, id := range users {
		names[i] = strconv.FormatInt(id, 10)
	}

	return "connections=" + strconv.Itoa(open) +
		",online=" + strconv.Itoa(len(users)) +
		",users=" + strings.Join(names, ";")
}
