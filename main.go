package main

import (
	"bufio"
	"context"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dmchat/config"
	"dmchat/db"
	"dmchat/server"
)

const shutdownTimeout = 15 * time.Second

var shutdownOnce sync.Once

func main() {
	cfg := config.Load()
	setupLogging(cfg)

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close()

	srvConfig := &server.ServerConfig{
		Port:              cfg.Port,
		ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
		PingInterval:      time.Duration(cfg.PingInterval) * time.Second,
		PongTimeout:       time.Duration(cfg.PongTimeout) * time.Second,
		MaxSessions:       cfg.MaxSessions,
		MaxProtocolErrors: cfg.MaxProtocolErrors,
		SendQueue:         cfg.SendQueue,
		MaxMessageBytes:   int64(cfg.MaxMessageBytes),
		SessionSecret:     cfg.SessionSecret,
		RequireLogin:      cfg.RequireLogin,
	}

	srv := server.New(database, srvConfig)
	stopped := make(chan struct{})

	// Start control socket for management commands
	go startControlSocket(cfg.ControlSocket, srv, stopped)

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.WithField("signal", sig.String()).Info("Shutting down")
		shutdown(srv, stopped)
	}()

	if err := srv.Start(); err != nil {
		logrus.WithError(err).Fatal("Server failed")
	}

	// Start returns once Shutdown closed the listener; wait for sessions
	// to finish before closing the database.
	<-stopped
	os.Remove(cfg.ControlSocket)
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func shutdown(srv *server.Server, stopped chan struct{}) {
	shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("Shutdown incomplete")
		}
		close(stopped)
	})
}

func startControlSocket(path string, srv *server.Server, stopped chan struct{}) {
	// Remove existing socket file
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		logrus.WithError(err).Warn("Failed to create control socket")
		return
	}
	defer listener.Close()

	logrus.WithField("path", path).Info("Control socket listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			continue
		}

		go handleControlCommand(srv, conn, stopped)
	}
}

// handleControlCommand answers one line-based command: "stats" or
// "shutdown". Replies are "OK|..." or "ERROR|...".
func handleControlCommand(srv *server.Server, conn net.Conn, stopped chan struct{}) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}

	cmd, _, _ := strings.Cut(strings.TrimSpace(line), "|")

	switch cmd {
	case "stats":
		conn.Write([]byte("OK|" + srv.GetStats() + "\n"))

	case "shutdown":
		conn.Write([]byte("OK|Shutting down\n"))
		conn.Close()

		logrus.Info("Shutdown requested over control socket")
		shutdown(srv, stopped)

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
