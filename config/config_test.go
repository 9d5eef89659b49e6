package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "dmchat.db", cfg.DBPath)
	assert.Equal(t, 30, cfg.PingInterval)
	assert.Equal(t, 10, cfg.MaxProtocolErrors)
	assert.False(t, cfg.RequireLogin)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MSG_PORT", "9999")
	t.Setenv("MSG_DB_PATH", "/tmp/x.db")
	t.Setenv("MSG_PING_INTERVAL", "5")
	t.Setenv("MSG_MAX_SESSIONS", "3")
	t.Setenv("MSG_REQUIRE_LOGIN", "true")
	t.Setenv("MSG_LOG_FORMAT", "json")

	cfg := Load()

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.PingInterval)
	assert.Equal(t, 3, cfg.MaxSessions)
	assert.True(t, cfg.RequireLogin)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("MSG_PORT", "not-a-port")
	t.Setenv("MSG_MAX_PROTOCOL_ERRORS", "-4")
	t.Setenv("MSG_REQUIRE_LOGIN", "maybe")

	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10, cfg.MaxProtocolErrors)
	assert.False(t, cfg.RequireLogin)
}
