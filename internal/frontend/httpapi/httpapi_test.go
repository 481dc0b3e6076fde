package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/textcamp/internal/auth"
	"github.com/cory-johannsen/textcamp/internal/connection"
	"github.com/cory-johannsen/textcamp/internal/content"
	"github.com/cory-johannsen/textcamp/internal/delivery"
	"github.com/cory-johannsen/textcamp/internal/frontend/httpapi"
	"github.com/cory-johannsen/textcamp/internal/frontend/websocket"
	"github.com/cory-johannsen/textcamp/internal/game/dice"
	"github.com/cory-johannsen/textcamp/internal/game/world"
	"github.com/cory-johannsen/textcamp/internal/storage/memory"
	"github.com/cory-johannsen/textcamp/internal/testutil"
)

const frameWait = 2 * time.Second

type inbox struct {
	mu    sync.Mutex
	links map[string]string
}

func (m *inbox) SendMagicLink(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[to] = link
	return nil
}

func (m *inbox) token(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	_, token, ok := strings.Cut(m.links[to], "token=")
	require.True(t, ok, "no link for %s", to)
	return token
}

type stack struct {
	srv      *httptest.Server
	inbox    *inbox
	world    *world.World
	chars    *memory.CharacterRepository
	registry *delivery.Registry
}

func newStack(t *testing.T, health httpapi.HealthFunc) *stack {
	t.Helper()
	logger := zaptest.NewLogger(t)
	s := &stack{
		inbox:    &inbox{links: make(map[string]string)},
		chars:    memory.NewCharacterRepository(),
		registry: delivery.NewRegistry(logger),
	}
	svc := auth.New(auth.Options{
		Logger:    logger,
		Accounts:  memory.NewAccountRepository(),
		Sessions:  memory.NewSessionRepository(),
		Mailer:    s.inbox,
		PublicURL: "http://play.test",
	})
	s.world = world.New(world.Options{
		Logger:     logger,
		Characters: s.chars,
		Auth:       svc,
		Random:     dice.Fixed(3),
		Fatal:      func(msg string, _ ...zap.Field) { t.Fatalf("unexpected fatal: %s", msg) },
	})
	set, err := content.Load("../../../content")
	require.NoError(t, err)
	set.Inject(s.world)
	require.NoError(t, s.world.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	handler := connection.New(connection.Options{
		Logger:   logger,
		World:    s.world,
		Registry: s.registry,
		Encoder:  delivery.JSONEncoder,
	})
	s.srv = httptest.NewServer(httpapi.NewHandler(httpapi.Options{
		Logger:    logger,
		Auth:      s.world,
		Sessions:  svc,
		Websocket: websocket.NewServer(ctx, logger, handler),
		Health:    health,
	}))
	t.Cleanup(func() {
		cancel()
		s.srv.Close()
	})
	return s
}

func (s *stack) post(t *testing.T, path, body string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Post(s.srv.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *stack) get(t *testing.T, path string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Get(s.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *stack) login(t *testing.T, email string) string {
	t.Helper()
	status, _ := s.post(t, "/auth", `{"email":"`+email+`"}`)
	require.Equal(t, http.StatusAccepted, status)
	status, body := s.get(t, "/otp?token="+s.inbox.token(t, strings.ToLower(email)))
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["session"])
	return body["session"]
}

func TestLoginAndPlay(t *testing.T) {
	s := newStack(t, nil)
	session := s.login(t, "Ann@Example.com")

	c := testutil.NewWSClient(t, s.srv.URL+"/ws/")
	c.Send("not-a-session")
	f := c.Next(frameWait)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, "Invalid session.", f.Text())

	c.Send(session)
	first := c.Next(frameWait)
	assert.Equal(t, "character", first.Type)
	_, before := c.ReadUntil("health", frameWait)
	kinds := []string{first.Type}
	for _, fr := range before {
		kinds = append(kinds, fr.Type)
	}
	assert.Equal(t, []string{"character", "population", "space", "exits", "time", "inventory"}, kinds)
	require.Eventually(t, func() bool { return s.registry.Count() == 1 }, frameWait, 10*time.Millisecond)

	c.Send("north")
	space, _ := c.ReadUntil("space", frameWait)
	assert.Contains(t, string(space.Body), "square")

	c.Send("take unicorn")
	f, _ = c.ReadUntil("error", frameWait)
	assert.Equal(t, "You don't see that.", f.Text())

	c.Send("quit")
	f, _ = c.ReadUntil("info", frameWait)
	assert.Equal(t, "Goodbye.", f.Text())
	c.ExpectClosed(frameWait)

	require.Eventually(t, func() bool { return s.registry.Count() == 0 }, frameWait, 10*time.Millisecond)
	assert.Equal(t, 1, s.chars.Len())
}

func TestReturningPlayerResumes(t *testing.T) {
	s := newStack(t, nil)
	first := s.login(t, "bob@example.com")
	id, err := s.world.AuthenticateSession(context.Background(), first)
	require.NoError(t, err)

	second := s.login(t, "bob@example.com")
	again, err := s.world.AuthenticateSession(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, s.chars.Len())
}

func TestAuthErrors(t *testing.T) {
	s := newStack(t, nil)

	status, body := s.post(t, "/auth", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid email", body["error"])

	status, _ = s.post(t, "/auth", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.get(t, "/otp")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.get(t, "/otp?token=forged")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid or expired link", body["error"])
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newStack(t, nil)
	session := s.login(t, "cat@example.com")

	status, _ := s.post(t, "/logout", `{"session":"`+session+`"}`)
	assert.Equal(t, http.StatusOK, status)

	_, err := s.world.AuthenticateSession(context.Background(), session)
	assert.ErrorIs(t, err, world.ErrUnauthenticated)

	status, _ = s.post(t, "/logout", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthz(t *testing.T) {
	s := newStack(t, nil)
	status, body := s.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	down := newStack(t, func(context.Context) error { return errors.New("dial tcp 10.0.0.7:5432: connection refused") })
	status, body = down.get(t, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, map[string]string{"status": "unavailable"}, body)
}
