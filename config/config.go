package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port              int
	DBPath            string
	ReadTimeout       int // seconds, HTTP request reads
	WriteTimeout      int // seconds, per frame write
	PingInterval      int // seconds between liveness sweeps
	PongTimeout       int // seconds of grace after a missed ping
	MaxSessions       int
	MaxProtocolErrors int
	SendQueue         int
	MaxMessageBytes   int
	SessionSecret     string
	RequireLogin      bool
	ControlSocket     string
	LogLevel          string
	LogFormat         string
}

func Load() *Config {
	cfg := &Config{
		Port:              8080,
		DBPath:            "dmchat.db",
		ReadTimeout:       15,
		WriteTimeout:      10,
		PingInterval:      30,
		PongTimeout:       10,
		MaxSessions:       1024,
		MaxProtocolErrors: 10,
		SendQueue:         64,
		MaxMessageBytes:   64 * 1024,
		SessionSecret:     "dmchat-dev-secret-change-me",
		ControlSocket:     "/tmp/dmchat.sock",
		LogLevel:          "info",
		LogFormat:         "text",
	}

	intFromEnv("MSG_PORT", &cfg.Port)
	intFromEnv("MSG_READ_TIMEOUT", &cfg.ReadTimeout)
	intFromEnv("MSG_WRITE_TIMEOUT", &cfg.WriteTimeout)
	intFromEnv("MSG_PING_INTERVAL", &cfg.PingInterval)
	intFromEnv("MSG_PONG_TIMEOUT", &cfg.PongTimeout)
	intFromEnv("MSG_MAX_SESSIONS", &cfg.MaxSessions)
	intFromEnv("MSG_MAX_PROTOCOL_ERRORS", &cfg.MaxProtocolErrors)
	intFromEnv("MSG_SEND_QUEUE", &cfg.SendQueue)
	intFromEnv("MSG_MAX_MESSAGE_BYTES", &cfg.MaxMessageBytes)

	if dbPath := os.Getenv("MSG_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if secret := os.Getenv("MSG_SESSION_SECRET"); secret != "" {
		cfg.SessionSecret = secret
	}

	if s := os.Getenv("MSG_REQUIRE_LOGIN"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			cfg.RequireLogin = v
		}
	}

	if path := os.Getenv("MSG_CONTROL_SOCKET"); path != "" {
		cfg.ControlSocket = path
	}

	if level := os.Getenv("MSG_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if format := os.Getenv("MSG_LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	return cfg
}

// intFromEnv overwrites *dst when key holds a positive integer.
func intFromEnv(key string, dst *int) {
	s := os.Getenv(key)
	if s == "" {
		return
	}
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		*dst = v
	}
}
