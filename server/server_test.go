package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bitterfly/go-chaos/whoami/database"
	"github.com/bitterfly/go-chaos/whoami/game"
	"github.com/bitterfly/go-chaos/whoami/pending"
	"github.com/bitterfly/go-chaos/whoami/schema"
	"github.com/bitterfly/go-chaos/whoami/server/message"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const botSecret = "bot-secret"

type testServer struct {
	*Server
	ts *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "server.db"), zap.NewNop(), false)
	require.NoError(t, err)
	require.NoError(t, database.Automigrate(db))
	store := database.NewStore(db)
	t.Cleanup(func() { store.Close() })

	hub := NewHub(zap.NewNop())
	manager := game.NewManager(store, hub, pending.NewMemory(), zap.NewNop(),
		game.WithPairer(game.NewPairer(1)),
		game.WithCodeGenerator(func() (string, error) { return "ABCD", nil }))

	hash, err := bcrypt.GenerateFromPassword([]byte(botSecret), bcrypt.MinCost)
	require.NoError(t, err)
	s := New(manager, hub, Config{
		TokenSecret:   "test-secret",
		TokenTTL:      time.Hour,
		BotSecretHash: hash,
		InviteURL:     "https://t.me/whoami_bot?start=%s",
	}, zap.NewNop())

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return &testServer{Server: s, ts: ts}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (s *testServer) login(t *testing.T, id int64, name string) string {
	t.Helper()
	status, body := s.do(t, "POST", "/api/login", "", map[string]interface{}{
		"id": id, "name": name, "secret": botSecret,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var resp struct {
		SessionToken string `json:"sessionToken"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.SessionToken
}

func (s *testServer) view(t *testing.T, token string) game.View {
	t.Helper()
	status, body := s.do(t, "GET", "/api/game/ABCD", token, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var view game.View
	require.NoError(t, json.Unmarshal(body, &view))
	return view
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, "POST", "/api/login", "", map[string]interface{}{
		"id": 1, "name": "P1", "secret": "guess",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, "POST", "/api/login", "", map[string]interface{}{"secret": botSecret})
	assert.Equal(t, http.StatusBadRequest, status)

	token := s.login(t, 1, "P1")
	payload, err := s.Token.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), payload.ID)
	assert.Equal(t, "P1", payload.Name)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, "GET", "/api/game", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = s.do(t, "POST", "/api/game", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGameFlow(t *testing.T) {
	s := newTestServer(t)
	tokens := map[int64]string{
		1: s.login(t, 1, "P1"),
		2: s.login(t, 2, "P2"),
		3: s.login(t, 3, "P3"),
	}

	status, body := s.do(t, "POST", "/api/game", tokens[1], nil)
	require.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"code":"ABCD"}`, string(body))

	status, _ = s.do(t, "POST", "/api/game/WXYZ/join", tokens[2], nil)
	assert.Equal(t, http.StatusNotFound, status)
	for _, id := range []int64{2, 3} {
		status, _ = s.do(t, "POST", "/api/game/abcd/join", tokens[id], nil)
		require.Equal(t, http.StatusOK, status)
	}
	status, _ = s.do(t, "POST", "/api/game/ABCD/join", tokens[2], nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = s.do(t, "GET", "/api/game/ABCD/players", tokens[3], nil)
	require.Equal(t, http.StatusOK, status)
	var players []game.PlayerInfo
	require.NoError(t, json.Unmarshal(body, &players))
	require.Len(t, players, 3)
	assert.True(t, players[0].Owner)

	status, _ = s.do(t, "POST", "/api/game/ABCD/collect", tokens[2], nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(t, "POST", "/api/game/ABCD/collect", tokens[1], nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, "POST", "/api/game/ABCD/words", tokens[1], map[string]interface{}{
		"to": s.view(t, tokens[1]).Target.ID, "text": "x",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	for _, id := range []int64{1, 2, 3} {
		target := s.view(t, tokens[id]).Target
		require.NotNil(t, target)
		status, body = s.do(t, "POST", "/api/game/ABCD/words", tokens[id], map[string]interface{}{
			"to": target.ID, "text": "secret word",
		})
		require.Equal(t, http.StatusOK, status, string(body))
	}

	view := s.view(t, tokens[2])
	assert.Equal(t, schema.StatusStarted, view.Status)
	assert.Len(t, view.Words, 2)
	assert.Equal(t, int64(1), view.Pending)

	status, body = s.do(t, "GET", "/api/game/ABCD/targets", tokens[1], nil)
	require.Equal(t, http.StatusOK, status)
	var targets []game.Target
	require.NoError(t, json.Unmarshal(body, &targets))
	require.Len(t, targets, 1)

	status, _ = s.do(t, "POST", "/api/game/ABCD/targets/1", tokens[1], nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, "POST", "/api/game/ABCD/targets/x", tokens[1], nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, "POST", "/api/game/ABCD/guess", tokens[2], map[string]string{"text": "nope"})
	require.Equal(t, http.StatusOK, status)
	var guess game.GuessResult
	require.NoError(t, json.Unmarshal(body, &guess))
	assert.Equal(t, game.Incorrect, guess.Outcome)

	status, body = s.do(t, "POST", "/api/text", tokens[2], map[string]string{"text": "Secret Word"})
	require.Equal(t, http.StatusOK, status)
	var text game.TextResult
	require.NoError(t, json.Unmarshal(body, &text))
	assert.Equal(t, game.TextGuess, text.Action)
	require.NotNil(t, text.Guess)
	assert.Equal(t, game.Correct, text.Guess.Outcome)

	status, _ = s.do(t, "POST", "/api/game/ABCD/cancel", tokens[1], nil)
	assert.Equal(t, http.StatusPreconditionFailed, status)
	status, _ = s.do(t, "POST", "/api/game/ABCD/end", tokens[2], nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.do(t, "POST", "/api/game/ABCD/end", tokens[1], nil)
	require.Equal(t, http.StatusOK, status)
	var report game.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Len(t, report.Players, 3)
	assert.Equal(t, 1, report.Summary.Guessed)

	status, _ = s.do(t, "GET", "/api/game/ABCD", tokens[1], nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, body = s.do(t, "GET", "/api/game", tokens[1], nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}

func TestTooFewPlayers(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, 1, "P1")

	status, _ := s.do(t, "POST", "/api/game", token, nil)
	require.Equal(t, http.StatusCreated, status)
	status, body := s.do(t, "POST", "/api/game/ABCD/collect", token, nil)
	assert.Equal(t, http.StatusPreconditionFailed, status)
	assert.Equal(t, game.ErrTooFewPlayers.Error(), string(body))
}

func TestTextAndPending(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, 1, "P1")

	status, body := s.do(t, "POST", "/api/text", token, map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"action":"nothing_pending"}`, string(body))

	status, _ = s.do(t, "DELETE", "/api/pending", token, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestInvite(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, 1, "P1")

	status, _ := s.do(t, "GET", "/api/game/ABCD/invite.png", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, "POST", "/api/game", token, nil)
	require.Equal(t, http.StatusCreated, status)

	resp, err := s.ts.Client().Get(s.ts.URL + "/api/game/ABCD/invite.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/api/ws/" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

type frame struct {
	Type message.Type   `json:"type"`
	Game string         `json:"game"`
	Msg  json.RawMessage `json:"msg"`
}

func TestWebsocket(t *testing.T) {
	s := newTestServer(t)
	owner := s.login(t, 1, "P1")
	player := s.login(t, 2, "P2")

	status, _ := s.do(t, "POST", "/api/game", owner, nil)
	require.Equal(t, http.StatusCreated, status)

	conn := s.dial(t, owner)

	// The answer proves the connection is registered with the hub.
	require.NoError(t, conn.WriteJSON(message.Message{Type: message.Text, Msg: "hello"}))
	var reply frame
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, message.Text, reply.Type)
	assert.JSONEq(t, `{"action":"nothing_pending"}`, string(reply.Msg))

	status, _ = s.do(t, "POST", "/api/game/ABCD/join", player, nil)
	require.Equal(t, http.StatusOK, status)

	var event frame
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, message.PlayerJoined, event.Type)
	assert.Equal(t, "ABCD", event.Game)
	assert.JSONEq(t, `{"name":"P2","players":2}`, string(event.Msg))
}

func TestWebsocket_BadToken(t *testing.T) {
	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/api/ws/garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_NotifyWithoutClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	err := hub.Notify(context.Background(), game.Event{
		Type:      message.GameCancelled,
		Receivers: []int64{1, 2},
		GameCode:  "ABCD",
	})
	assert.NoError(t, err)
}
