package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Millisecond, "just now"},
		{42 * time.Second, "42s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}

func TestFormatDateSeparator(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Today", formatDateSeparator(now.Add(-time.Hour), now))
	assert.Equal(t, "Yesterday", formatDateSeparator(now.Add(-24*time.Hour), now))
	assert.Equal(t, "March 3", formatDateSeparator(time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "December 31, 2023", formatDateSeparator(time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC), now))
}

func TestCloseReason(t *testing.T) {
	assert.Equal(t, "Signed in from another window", closeReason(1000, ""))
	assert.Equal(t, "Server is shutting down", closeReason(1001, "Server shutting down"))
	assert.Equal(t, "Closed by server: Too slow", closeReason(1008, "Too slow"))
	assert.Equal(t, "Connection lost", closeReason(1006, "EOF"))
}
