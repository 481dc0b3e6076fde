package testutil

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

const (
	telnetIAC        byte = 255
	telnetDO         byte = 253
	telnetWILL       byte = 251
	telnetSB         byte = 250
	telnetSE         byte = 240
	telnetTimingMark byte = 6
)

// TelnetClient is a Telnet test client. It strips negotiation from what it
// reads and answers timing-mark pings when AnswerPings is set.
type TelnetClient struct {
	conn   net.Conn
	reader *bufio.Reader
	t      *testing.T

	// AnswerPings makes the client reply WILL TIMING-MARK to DO TIMING-MARK.
	AnswerPings bool
	// Pings counts the timing-mark requests seen.
	Pings int
}

// NewTelnetClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("telnet client connected to %s [%s]", addr, time.Since(start))
	return &TelnetClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
		t:      t,
	}
}

// ReadUntil reads text until substr appears or timeout elapses, returning
// everything read including the match with negotiation removed.
//
// Precondition: substr must be non-empty.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	var buf strings.Builder
	for {
		b, err := c.readText()
		if err != nil {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, buf.String(), err)
		}
		buf.WriteByte(b)
		if strings.Contains(buf.String(), substr) {
			return buf.String()
		}
	}
}

// ExpectClosed reads until the server hangs up, failing if it does not
// within timeout.
func (c *TelnetClient) ExpectClosed(timeout time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		if _, err := c.readText(); err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.t.Fatalf("connection still open after %s", timeout)
			}
			return
		}
	}
}

// readText returns the next text byte, consuming negotiation on the way.
func (c *TelnetClient) readText() (byte, error) {
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != telnetIAC {
			return b, nil
		}
		cmd, err := c.reader.ReadByte()
		if err != nil {
			return 0, err
		}
		switch {
		case cmd == telnetIAC:
			return b, nil
		case cmd == telnetSB:
			if err := c.skipSubnegotiation(); err != nil {
				return 0, err
			}
		case cmd >= telnetWILL:
			opt, err := c.reader.ReadByte()
			if err != nil {
				return 0, err
			}
			if cmd == telnetDO && opt == telnetTimingMark {
				c.Pings++
				if c.AnswerPings {
					_, _ = c.conn.Write([]byte{telnetIAC, telnetWILL, telnetTimingMark})
				}
			}
		}
	}
}

func (c *TelnetClient) skipSubnegotiation() error {
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return err
		}
		if b != telnetIAC {
			continue
		}
		next, err := c.reader.ReadByte()
		if err != nil {
			return err
		}
		if next == telnetSE {
			return nil
		}
	}
}

// Send writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	c.conn.Close()
}
