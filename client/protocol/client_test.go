package protocol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers the subset of the dmchat API the client uses.
func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(ErrorData{Message: "Invalid credentials", Kind: "authorization"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "dmchat-session", Value: "ok", Path: "/"})
		json.NewEncoder(w).Encode(User{ID: 1, Username: creds["username"], Discriminator: "123456"})
	})
	mux.HandleFunc("GET /api/friends", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("dmchat-session"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]User{{ID: 2, Username: "bob", Discriminator: "654321", Online: true}})
	})
	mux.HandleFunc("GET /api/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Message{{ID: 5, SenderID: 1, ReceiverID: 2, Content: "old"}})
	})
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("dmchat-session"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env envelope
			if json.Unmarshal(raw, &env) != nil {
				return
			}

			var reply []byte
			switch env.Type {
			case TypeAuth:
				var data map[string]int64
				json.Unmarshal(env.Data, &data)
				if data["userId"] == 1 {
					reply, _ = encode(TypeAuthSuccess, data)
				} else {
					reply, _ = encode(TypeError, ErrorData{Message: "User ID does not match login", Kind: "authorization"})
				}
			case TypeMessage:
				var msg Message
				json.Unmarshal(env.Data, &msg)
				msg.ID = 9
				msg.Timestamp = time.Now().UTC()
				reply, _ = encode(TypeMessage, msg)
			case TypePing:
				reply, _ = encode(TypePong, nil)
			case "kick":
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
				return
			}
			conn.WriteMessage(websocket.TextMessage, reply)
		}
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func loggedIn(t *testing.T) *Client {
	t.Helper()
	ts := fakeServer(t)
	c, err := NewClient(ts.URL)
	require.NoError(t, err)

	user, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice#123456", user.Tag())
	return c
}

func TestNewClientRejectsScheme(t *testing.T) {
	_, err := NewClient("ftp://example.com")
	assert.Error(t, err)
}

func TestLoginFailure(t *testing.T) {
	ts := fakeServer(t)
	c, err := NewClient(ts.URL)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "alice", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Error())

	_, err = c.Friends(context.Background())
	require.ErrorAs(t, err, &apiErr)
}

func TestFriendsAndHistory(t *testing.T) {
	c := loggedIn(t)

	friends, err := c.Friends(context.Background())
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)
	assert.True(t, friends[0].Online)

	history, err := c.History(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(2), history[0].Peer(1))
	assert.Equal(t, int64(1), history[0].Peer(2))
}

func TestConnectAndSend(t *testing.T) {
	c := loggedIn(t)
	require.NoError(t, c.Connect(1))
	defer c.Disconnect()
	assert.True(t, c.IsConnected())

	received := make(chan Message, 1)
	c.OnFrame(TypeMessage, func(data json.RawMessage) {
		var msg Message
		assert.NoError(t, json.Unmarshal(data, &msg))
		received <- msg
	})

	require.NoError(t, c.SendMessage(1, 2, "hello"))

	select {
	case msg := <-received:
		assert.Equal(t, int64(9), msg.ID)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, int64(2), msg.ReceiverID)
	case <-time.After(5 * time.Second):
		t.Fatal("no echo")
	}
}

func TestConnectRejected(t *testing.T) {
	c := loggedIn(t)

	err := c.Connect(2)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "authorization", apiErr.Kind)
	assert.False(t, c.IsConnected())
}

func TestConnectWithoutLogin(t *testing.T) {
	ts := fakeServer(t)
	c, err := NewClient(ts.URL)
	require.NoError(t, err)

	err = c.Connect(1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestServerCloseRaisesClosed(t *testing.T) {
	c := loggedIn(t)
	require.NoError(t, c.Connect(1))

	var once sync.Once
	closed := make(chan CloseInfo, 1)
	c.OnFrame(TypeClosed, func(data json.RawMessage) {
		once.Do(func() {
			var info CloseInfo
			json.Unmarshal(data, &info)
			closed <- info
		})
	})

	require.NoError(t, c.send("kick", nil))

	select {
	case info := <-closed:
		assert.Equal(t, websocket.CloseGoingAway, info.Code)
		assert.Equal(t, "Server shutting down", info.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("no close event")
	}
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Disconnect())
}

func TestPingUpdatesPong(t *testing.T) {
	c := loggedIn(t)
	require.NoError(t, c.Connect(1))
	defer c.Disconnect()

	time.Sleep(20 * time.Millisecond)
	before := c.LastPongTime()

	pong := make(chan struct{}, 1)
	c.OnFrame(TypePong, func(json.RawMessage) { pong <- struct{}{} })
	require.NoError(t, c.send(TypePing, nil))

	select {
	case <-pong:
	case <-time.After(5 * time.Second):
		t.Fatal("no pong")
	}
	assert.Less(t, c.LastPongTime(), before)
}
