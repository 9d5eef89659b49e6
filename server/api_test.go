package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmchat/models"
	"dmchat/protocol"
)

type apiClient struct {
	t    *testing.T
	env  *testEnv
	http *http.Client
}

func (e *testEnv) client(t *testing.T) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiClient{t: t, env: e, http: &http.Client{Jar: jar, Timeout: readTimeout}}
}

// do sends a request and decodes the JSON response into out when non-nil.
func (c *apiClient) do(method, path string, body any, out any) int {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.env.http.URL+path, reader)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *apiClient) register(username string) models.User {
	c.t.Helper()
	var user models.User
	status := c.do("POST", "/api/register", credentials{Username: username, Password: "secret"}, &user)
	require.Equal(c.t, http.StatusCreated, status)
	return user
}

// cookieHeader returns the login cookie for a websocket dial.
func (c *apiClient) cookieHeader() http.Header {
	c.t.Helper()
	u, err := url.Parse(c.env.http.URL)
	require.NoError(c.t, err)

	header := http.Header{}
	for _, cookie := range c.http.Jar.Cookies(u) {
		header.Add("Cookie", cookie.String())
	}
	return header
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, env.client(t).do("GET", "/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t)

	user := c.register("alice")
	assert.Positive(t, user.ID)
	assert.Len(t, user.Discriminator, 6)

	var me models.User
	require.Equal(t, http.StatusOK, c.do("GET", "/api/user", nil, &me))
	assert.Equal(t, user.ID, me.ID)
	assert.Empty(t, me.Password)

	var errBody errorBody
	assert.Equal(t, http.StatusConflict,
		env.client(t).do("POST", "/api/register", credentials{Username: "alice", Password: "x"}, &errBody))
	assert.Equal(t, "Username already exists", errBody.Message)

	assert.Equal(t, http.StatusBadRequest,
		env.client(t).do("POST", "/api/register", credentials{Username: "  "}, nil))

	other := env.client(t)
	assert.Equal(t, http.StatusUnauthorized,
		other.do("POST", "/api/login", credentials{Username: "alice", Password: "wrong"}, nil))
	assert.Equal(t, http.StatusUnauthorized, other.do("GET", "/api/user", nil, nil))

	require.Equal(t, http.StatusOK,
		other.do("POST", "/api/login", credentials{Username: "alice", Password: "secret"}, &me))
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, http.StatusOK, other.do("GET", "/api/user", nil, nil))

	assert.Equal(t, http.StatusOK, other.do("POST", "/api/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, other.do("GET", "/api/user", nil, nil))
}

func TestRoutesRequireLogin(t *testing.T) {
	env := setupTestServer(t)
	c := env.client(t)

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/user"},
		{"GET", "/api/friends"},
		{"POST", "/api/friends"},
		{"GET", "/api/messages/1"},
		{"POST", "/api/messages"},
		{"DELETE", "/api/messages/1"},
	} {
		var body errorBody
		assert.Equal(t, http.StatusUnauthorized, c.do(route.method, route.path, nil, &body), route.path)
		assert.Equal(t, "authorization", body.Kind, route.path)
	}
}

func TestFriends(t *testing.T) {
	env := setupTestServer(t)
	alice := env.client(t)
	bob := env.client(t)
	aliceUser := alice.register("alice")
	bobUser := bob.register("bob")

	assert.Equal(t, http.StatusNotFound,
		alice.do("POST", "/api/friends", friendRequest{Username: "bob", Discriminator: "000000"}, nil))
	assert.Equal(t, http.StatusBadRequest,
		alice.do("POST", "/api/friends", friendRequest{Username: "bob"}, nil))
	assert.Equal(t, http.StatusBadRequest,
		alice.do("POST", "/api/friends", friendRequest{Username: "alice", Discriminator: aliceUser.Discriminator}, nil))

	tag := friendRequest{Username: "bob", Discriminator: bobUser.Discriminator}
	require.Equal(t, http.StatusCreated, alice.do("POST", "/api/friends", tag, nil))
	assert.Equal(t, http.StatusBadRequest, alice.do("POST", "/api/friends", tag, nil))

	var friends []models.User
	require.Equal(t, http.StatusOK, bob.do("GET", "/api/friends", nil, &friends))
	require.Len(t, friends, 1)
	assert.Equal(t, aliceUser.ID, friends[0].ID)
}

func TestMessagesOverHTTP(t *testing.T) {
	env := setupTestServer(t)
	alice := env.client(t)
	bob := env.client(t)
	aliceUser := alice.register("alice")
	bobUser := bob.register("bob")

	var first, second models.Message
	require.Equal(t, http.StatusCreated,
		alice.do("POST", "/api/messages", messageRequest{ReceiverID: bobUser.ID, Content: "one"}, &first))
	require.Equal(t, http.StatusCreated,
		bob.do("POST", "/api/messages", messageRequest{ReceiverID: aliceUser.ID, Content: "two"}, &second))
	assert.Equal(t, aliceUser.ID, first.SenderID)

	assert.Equal(t, http.StatusBadRequest,
		alice.do("POST", "/api/messages", messageRequest{ReceiverID: bobUser.ID, Content: "   "}, nil))
	assert.Equal(t, http.StatusNotFound,
		alice.do("POST", "/api/messages", messageRequest{ReceiverID: 999, Content: "hi"}, nil))

	var history []models.Message
	require.Equal(t, http.StatusOK, bob.do("GET", "/api/messages/"+strconv.FormatInt(aliceUser.ID, 10), nil, &history))
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)

	var empty []models.Message
	require.Equal(t, http.StatusOK, alice.do("GET", "/api/messages/999", nil, &empty))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	assert.Equal(t, http.StatusBadRequest, alice.do("GET", "/api/messages/abc", nil, nil))
}

func TestDeleteMessage(t *testing.T) {
	env := setupTestServer(t)
	alice := env.client(t)
	bob := env.client(t)
	carol := env.client(t)
	alice.register("alice")
	bobUser := bob.register("bob")
	carol.register("carol")

	var msg models.Message
	require.Equal(t, http.StatusCreated,
		alice.do("POST", "/api/messages", messageRequest{ReceiverID: bobUser.ID, Content: "delete me"}, &msg))
	path := "/api/messages/" + strconv.FormatInt(msg.ID, 10)

	assert.Equal(t, http.StatusForbidden, carol.do("DELETE", path, nil, nil))
	assert.Equal(t, http.StatusOK, bob.do("DELETE", path, nil, nil))
	assert.Equal(t, http.StatusOK, alice.do("DELETE", path, nil, nil))

	var history []models.Message
	require.Equal(t, http.StatusOK, alice.do("GET", "/api/messages/"+strconv.FormatInt(bobUser.ID, 10), nil, &history))
	assert.Empty(t, history)
}

func TestHTTPMessageDeliveredLive(t *testing.T) {
	env := setupTestServer(t)
	alice := env.client(t)
	bob := env.client(t)
	alice.register("alice")
	bobUser := bob.register("bob")

	ws := env.dial(t, nil)
	ws.auth(bobUser.ID)

	var msg models.Message
	require.Equal(t, http.StatusCreated,
		alice.do("POST", "/api/messages", messageRequest{ReceiverID: bobUser.ID, Content: "live"}, &msg))

	got := ws.expectMessage()
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "live", got.Content)
}

func TestRequireLoginForWebsocket(t *testing.T) {
	env := setupTestServer(t, func(c *ServerConfig) { c.RequireLogin = true })
	alice := env.client(t)
	aliceUser := alice.register("alice")
	bobUser := env.client(t).register("bob")

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ws := env.dial(t, alice.cookieHeader())
	ws.send(protocol.TypeAuth, map[string]int64{"userId": bobUser.ID})
	ws.expectError("authorization")
	ws.auth(aliceUser.ID)
}

func TestMalformedBody(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Post(env.http.URL+"/api/login", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCookieOptions(t *testing.T) {
	env := setupTestServer(t)

	raw, _ := json.Marshal(credentials{Username: "alice", Password: "secret"})
	resp, err := http.Post(env.http.URL+"/api/register", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "/", cookies[0].Path)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), cookies[0].Expires, time.Minute)
}
