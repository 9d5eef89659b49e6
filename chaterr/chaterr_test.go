package chaterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		kind   Kind
	}{
		{"validation", Validation("content required"), ErrValidation, KindValidation},
		{"authorization", Authorization("sender mismatch"), ErrAuthorization, KindAuthorization},
		{"protocol", Protocol("not authenticated"), ErrProtocol, KindProtocol},
		{"not found", NotFound("user %d not found", 7), ErrNotFound, KindNotFound},
		{"persistence", Persistence(errors.New("disk full"), "Failed to save message"), ErrPersistence, KindPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.target)
			assert.Equal(t, tt.kind, KindOf(tt.err))

			wrapped := fmt.Errorf("handling event: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.target)
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	err := Validation("bad")
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrProtocol)
}

func TestMessageHidesCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Persistence(cause, "Failed to save message")

	assert.Equal(t, "Failed to save message", Message(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestMessageForForeignError(t *testing.T) {
	assert.Equal(t, "Internal error", Message(errors.New("boom")))
	assert.Equal(t, Kind(0), KindOf(errors.New("boom")))
	assert.Equal(t, "user 3 not found", Message(NotFound("user %d not found", 3)))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
