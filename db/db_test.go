package db

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmchat/chaterr"
	"dmchat/models"
)

// setupTestDB opens a fresh database in a temp dir.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database
}

func createUser(t *testing.T, database *DB, name string) *models.User {
	t.Helper()
	user, err := database.CreateUser(context.Background(), name, "password123")
	require.NoError(t, err)
	return user
}

func TestNewCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	database, err := New(path)
	require.NoError(t, err)
	defer database.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestReopenResetsOnlineFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	database, err := New(path)
	require.NoError(t, err)
	alice, err := database.CreateUser(ctx, "alice", "pw")
	require.NoError(t, err)
	require.NoError(t, database.SetUserOnline(ctx, alice.ID, true))
	require.NoError(t, database.Close())

	database, err = New(path)
	require.NoError(t, err)
	defer database.Close()

	got, err := database.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, got.Online)
}

func TestCreateMessage(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")

	msg, err := database.CreateMessage(ctx, alice.ID, bob.ID, "hi")
	require.NoError(t, err)

	assert.Positive(t, msg.ID)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.ReceiverID)
	assert.Equal(t, "hi", msg.Content)
	assert.False(t, msg.Timestamp.IsZero())

	stored, err := database.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, stored.ID)
	assert.True(t, msg.Timestamp.Equal(stored.Timestamp))
}

func TestCreateMessageValidation(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")

	tests := []struct {
		name     string
		sender   int64
		receiver int64
		content  string
		want     error
	}{
		{"empty content", alice.ID, bob.ID, "", chaterr.ErrValidation},
		{"blank content", alice.ID, bob.ID, "   \n", chaterr.ErrValidation},
		{"zero sender", 0, bob.ID, "hi", chaterr.ErrValidation},
		{"unknown receiver", alice.ID, 9999, "hi", chaterr.ErrNotFound},
		{"unknown sender", 9999, bob.ID, "hi", chaterr.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := database.CreateMessage(ctx, tt.sender, tt.receiver, tt.content)
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	messages, err := database.GetMessages(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestGetMessagesOrderAndSymmetry(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")
	carol := createUser(t, database, "carol")

	contents := []string{"one", "two", "three", "four", "five"}
	for i, c := range contents {
		sender, receiver := alice.ID, bob.ID
		if i%2 == 1 {
			sender, receiver = bob.ID, alice.ID
		}
		_, err := database.CreateMessage(ctx, sender, receiver, c)
		require.NoError(t, err)
	}
	_, err := database.CreateMessage(ctx, alice.ID, carol.ID, "not in this conversation")
	require.NoError(t, err)

	ab, err := database.GetMessages(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	ba, err := database.GetMessages(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	require.Len(t, ab, len(contents))
	assert.Equal(t, ab, ba)

	for i := range ab {
		assert.Equal(t, contents[i], ab[i].Content)
		if i > 0 {
			assert.False(t, ab[i].Timestamp.Before(ab[i-1].Timestamp), "timestamps must not decrease")
			assert.Greater(t, ab[i].ID, ab[i-1].ID)
		}
	}
}

func TestDeleteMessageIdempotent(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")

	keep, err := database.CreateMessage(ctx, alice.ID, bob.ID, "keep")
	require.NoError(t, err)
	drop, err := database.CreateMessage(ctx, bob.ID, alice.ID, "drop")
	require.NoError(t, err)

	require.NoError(t, database.DeleteMessage(ctx, drop.ID))
	require.NoError(t, database.DeleteMessage(ctx, drop.ID))
	require.NoError(t, database.DeleteMessage(ctx, 424242))

	messages, err := database.GetMessages(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, keep.ID, messages[0].ID)

	_, err = database.GetMessage(ctx, drop.ID)
	assert.ErrorIs(t, err, chaterr.ErrNotFound)
}

func TestConcurrentCreateMessage(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	alice := createUser(t, database, "alice")
	bob := createUser(t, database, "bob")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := database.CreateMessage(ctx, alice.ID, bob.ID, "concurrent")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	messages, err := database.GetMessages(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Len(t, messages, n)
}
