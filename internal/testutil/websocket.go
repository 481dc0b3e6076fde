package testutil

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is one decoded outbound update.
type Frame struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// Text returns the body of a text-bodied frame.
func (f Frame) Text() string {
	var s string
	_ = json.Unmarshal(f.Body, &s)
	return s
}

// WSClient is a websocket test client speaking the JSON update protocol.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials url, rewriting an http:// scheme to ws://.
//
// Precondition: url must point at a websocket endpoint.
// Postcondition: Returns a connected client or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()
	url = "ws" + strings.TrimPrefix(url, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", url, err, time.Since(start))
	}
	t.Cleanup(func() { conn.Close() })

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send writes one text message.
func (c *WSClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Next reads the next frame or fails on timeout.
func (c *WSClient) Next(timeout time.Duration) Frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		c.t.Fatalf("decoding frame %q: %v", msg, err)
	}
	return f
}

// ReadUntil reads frames until one of the given type arrives, returning it
// and every frame before it.
func (c *WSClient) ReadUntil(kind string, timeout time.Duration) (Frame, []Frame) {
	c.t.Helper()
	deadline := time.Now().Add(timeout)
	var seen []Frame
	for {
		f := c.Next(time.Until(deadline))
		if f.Type == kind {
			return f, seen
		}
		seen = append(seen, f)
	}
}

// ExpectClosed waits for the server to close the connection.
func (c *WSClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				c.t.Fatalf("connection still open after %s", timeout)
			}
			return
		}
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
