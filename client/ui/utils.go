package ui

import (
	"fmt"
	"time"
)

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "just now"
	}
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	minutes := seconds / 60
	seconds = seconds % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatDateSeparator formats a message date relative to now
func formatDateSeparator(t, now time.Time) string {
	t = t.In(now.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)
	msgDate := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())

	switch {
	case msgDate.Equal(today):
		return "Today"
	case msgDate.Equal(yesterday):
		return "Yesterday"
	case msgDate.Year() == now.Year():
		return t.Format("January 2")
	default:
		return t.Format("January 2, 2006")
	}
}

// closeReason turns a websocket close code into a status line
func closeReason(code int, text string) string {
	switch code {
	case 1000:
		return "Signed in from another window"
	case 1001:
		return "Server is shutting down"
	case 1008:
		if text != "" {
			return "Closed by server: " + text
		}
		return "Closed by server"
	default:
		return "Connection lost"
	}
}
