// Package delivery routes world updates to the live connection of the
// character they are addressed to.
package delivery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

// DefaultMailboxSize is used when a non-positive size is requested.
const DefaultMailboxSize = 64

var (
	// ErrClosed is returned by Push on a closed mailbox.
	ErrClosed = errors.New("mailbox closed")
	// ErrFull is returned by Push when the buffer has no room.
	ErrFull = errors.New("mailbox full")
)

// Encoder turns an update into one outbound frame.
type Encoder func(update.Update) ([]byte, error)

// JSONEncoder encodes the wire payload as JSON.
func JSONEncoder(u update.Update) ([]byte, error) { return u.Encode() }

// Mailbox buffers encoded frames for one connection.
//
// Invariant: once closed, the events channel is closed and stays closed.
type Mailbox struct {
	id     entity.Identifier
	encode Encoder
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// NewMailbox creates an open Mailbox for the character id.
//
// Precondition: encode must be non-nil.
// Postcondition: Returns a Mailbox with an open events channel of the given
// capacity (DefaultMailboxSize when size <= 0).
func NewMailbox(id entity.Identifier, size int, encode Encoder) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{
		id:     id,
		encode: encode,
		events: make(chan []byte, size),
	}
}

// ID returns the character the mailbox belongs to.
func (m *Mailbox) ID() entity.Identifier { return m.id }

// Push encodes u and enqueues it without blocking.
//
// Postcondition: The frame is enqueued, or an error wrapping ErrClosed or
// ErrFull is returned and nothing is enqueued.
func (m *Mailbox) Push(u update.Update) error {
	frame, err := m.encode(u)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("mailbox %s: %w", m.id, ErrClosed)
	}
	select {
	case m.events <- frame:
		return nil
	default:
		return fmt.Errorf("mailbox %s: %w", m.id, ErrFull)
	}
}

// Events returns the read-only channel the connection writer drains.
func (m *Mailbox) Events() <-chan []byte {
	return m.events
}

// Close marks the mailbox closed and closes the events channel. Frames
// already buffered can still be drained.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.events)
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (m *Mailbox) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
