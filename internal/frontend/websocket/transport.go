// Package websocket adapts gorilla/websocket connections to the connection
// handler: one text frame per message in both directions.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/connection"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Transport implements connection.Transport over a websocket.
type Transport struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error

	mu       sync.Mutex
	activity func()
}

// NewTransport wraps an upgraded connection.
//
// Precondition: conn must be open and not yet read from.
func NewTransport(conn *websocket.Conn) *Transport {
	t := &Transport{conn: conn}
	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		t.notify()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		t.notify()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	return t
}

func (t *Transport) notify() {
	t.mu.Lock()
	fn := t.activity
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// OnActivity implements connection.Transport.
func (t *Transport) OnActivity(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activity = fn
}

// ReadText implements connection.Transport. Binary frames are skipped.
func (t *Transport) ReadText(_ context.Context) (string, error) {
	for {
		kind, msg, err := t.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind == websocket.TextMessage {
			return string(msg), nil
		}
		t.notify()
	}
}

// WriteText implements connection.Transport.
func (t *Transport) WriteText(_ context.Context, frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

// Ping implements connection.Transport.
func (t *Transport) Ping(_ context.Context) error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close implements connection.Transport. It sends a close frame before
// closing the socket; repeated calls return the first result.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

// Server upgrades HTTP requests and serves them until its context ends.
type Server struct {
	ctx      context.Context
	logger   *zap.Logger
	handler  *connection.Handler
	upgrader websocket.Upgrader
}

// NewServer creates a Server. Connections are cancelled when ctx is.
//
// Precondition: logger and handler must be non-nil.
func NewServer(ctx context.Context, logger *zap.Logger, handler *connection.Handler) *Server {
	return &Server{
		ctx:     ctx,
		logger:  logger,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("client connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("transport", "websocket"),
	)
	if err := s.handler.Serve(s.ctx, NewTransport(conn)); err != nil {
		s.logger.Debug("session ended",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
	}
}
