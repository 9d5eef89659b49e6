package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
	authTimeout  = 10 * time.Second
)

// Client talks to a dmchat server: the HTTP API for accounts, friends and
// history, and one websocket for live messages.
type Client struct {
	baseURL *url.URL
	http    *http.Client

	ws        *websocket.Conn
	sendMu    sync.Mutex
	mu        sync.Mutex
	handlers  map[string][]func(json.RawMessage)
	done      chan struct{}
	connected atomic.Bool

	lastPong time.Time
	pongMu   sync.RWMutex
}

// NewClient creates a client for the server at serverURL (http or https)
func NewClient(serverURL string) (*Client, error) {
	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", base.Scheme)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:  base,
		http:     &http.Client{Jar: jar, Timeout: 15 * time.Second},
		handlers: make(map[string][]func(json.RawMessage)),
	}, nil
}

// Register creates an account and logs in as it
func (c *Client) Register(ctx context.Context, username, password string) (*User, error) {
	var user User
	err := c.do(ctx, "POST", "/api/register", map[string]string{"username": username, "password": password}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and stores the session cookie
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var user User
	err := c.do(ctx, "POST", "/api/login", map[string]string{"username": username, "password": password}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "POST", "/api/logout", nil, nil)
}

func (c *Client) Friends(ctx context.Context) ([]User, error) {
	var friends []User
	if err := c.do(ctx, "GET", "/api/friends", nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// AddFriend adds the user with the given tag parts as a mutual friend
func (c *Client) AddFriend(ctx context.Context, username, discriminator string) error {
	return c.do(ctx, "POST", "/api/friends", map[string]string{
		"username":      username,
		"discriminator": discriminator,
	}, nil)
}

// History returns the conversation with friendID, oldest first
func (c *Client) History(ctx context.Context, friendID int64) ([]Message, error) {
	var messages []Message
	if err := c.do(ctx, "GET", "/api/messages/"+strconv.FormatInt(friendID, 10), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID int64) error {
	return c.do(ctx, "DELETE", "/api/messages/"+strconv.FormatInt(messageID, 10), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		json.NewDecoder(resp.Body).Decode(&apiErr.ErrorData)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) wsURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.JoinPath("/ws").String()
}

// Connect opens the websocket and authenticates as userID. It returns once
// the server acknowledged or rejected the auth.
func (c *Client) Connect(userID int64) error {
	header := http.Header{}
	for _, cookie := range c.http.Jar.Cookies(c.baseURL) {
		header.Add("Cookie", cookie.String())
	}

	dialer := websocket.Dialer{HandshakeTimeout: authTimeout}
	ws, resp, err := dialer.Dial(c.wsURL(), header)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, ErrorData: ErrorData{Message: resp.Status}}
		}
		return err
	}

	if err := c.authenticate(ws, userID); err != nil {
		ws.Close()
		return err
	}

	c.ws = ws
	c.done = make(chan struct{})
	c.connected.Store(true)
	c.pongMu.Lock()
	c.lastPong = time.Now()
	c.pongMu.Unlock()

	ws.SetPongHandler(func(string) error {
		c.markPong()
		return nil
	})

	go c.pingLoop()
	go c.readLoop()

	return nil
}

func (c *Client) authenticate(ws *websocket.Conn, userID int64) error {
	frame, err := encode(TypeAuth, map[string]int64{"userId": userID})
	if err != nil {
		return err
	}
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}

	ws.SetReadDeadline(time.Now().Add(authTimeout))
	defer ws.SetReadDeadline(time.Time{})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch env.Type {
		case TypeAuthSuccess:
			return nil
		case TypeError:
			var data ErrorData
			json.Unmarshal(env.Data, &data)
			return &APIError{Status: http.StatusForbidden, ErrorData: data}
		}
	}
}

// Disconnect closes the websocket without raising TypeClosed
func (c *Client) Disconnect() error {
	if !c.connected.Swap(false) {
		return nil
	}
	close(c.done)

	c.sendMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	c.sendMu.Unlock()

	return c.ws.Close()
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// LastPongTime returns time since last pong response
func (c *Client) LastPongTime() time.Duration {
	c.pongMu.RLock()
	defer c.pongMu.RUnlock()
	return time.Since(c.lastPong)
}

func (c *Client) markPong() {
	c.pongMu.Lock()
	c.lastPong = time.Now()
	c.pongMu.Unlock()
}

// pingLoop sends periodic application pings
func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.send(TypePing, nil)
		}
	}
}

// readLoop dispatches frames from the server until the socket closes
func (c *Client) readLoop() {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if c.connected.Swap(false) {
				close(c.done)
				c.ws.Close()
				c.notifyClosed(err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if env.Type == TypePong {
			c.markPong()
		}
		c.notifyHandlers(env.Type, env.Data)
	}
}

func (c *Client) notifyClosed(err error) {
	info := CloseInfo{Code: websocket.CloseAbnormalClosure, Reason: err.Error()}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		info = CloseInfo{Code: closeErr.Code, Reason: closeErr.Text}
	}
	data, _ := json.Marshal(info)
	c.notifyHandlers(TypeClosed, data)
}

// notifyHandlers runs handlers in order on the read goroutine
func (c *Client) notifyHandlers(frameType string, data json.RawMessage) {
	c.mu.Lock()
	handlers := append([]func(json.RawMessage){}, c.handlers[frameType]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
}

// OnFrame registers a handler for a frame type
func (c *Client) OnFrame(frameType string, handler func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[frameType] = append(c.handlers[frameType], handler)
}

func (c *Client) send(msgType string, data any) error {
	if !c.connected.Load() {
		return errors.New("not connected")
	}
	frame, err := encode(msgType, data)
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// SendMessage sends a message; the server echoes it back once stored
func (c *Client) SendMessage(senderID, receiverID int64, content string) error {
	return c.send(TypeMessage, map[string]any{
		"senderId":   senderID,
		"receiverId": receiverID,
		"content":    content,
	})
}
