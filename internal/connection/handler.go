// Package connection drives one client connection through authentication
// into the command loop, and keeps it alive with heartbeats and clock pushes.
package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/textcamp/internal/delivery"
	"github.com/cory-johannsen/textcamp/internal/game/clock"
	"github.com/cory-johannsen/textcamp/internal/game/command"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
	"github.com/cory-johannsen/textcamp/internal/game/world"
)

// Defaults for Options left at zero.
const (
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultClientTimeout      = 60 * time.Second
	DefaultTimeUpdateInterval = 10 * time.Second
)

// Messages written to a client that has not authenticated yet.
const (
	msgInvalidSession = "Invalid session."
	msgSomethingWrong = "Something went wrong!"
)

// Transport is a bidirectional text channel to one client.
type Transport interface {
	// ReadText blocks for the next inbound message.
	ReadText(ctx context.Context) (string, error)
	// WriteText sends one outbound frame.
	WriteText(ctx context.Context, frame []byte) error
	// Ping asks the client to prove it is alive. It may be called
	// concurrently with WriteText.
	Ping(ctx context.Context) error
	// Close releases the transport and unblocks a pending ReadText.
	Close() error
	// OnActivity registers fn to be called for any inbound traffic the
	// transport consumes itself, such as pongs.
	OnActivity(fn func())
}

// World is the part of the simulation a connection talks to.
type World interface {
	AuthenticateSession(ctx context.Context, token string) (entity.Identifier, error)
	Command(ctx context.Context, cmd command.Command) []update.Update
	Clock() clock.Clock
	Disconnect(ctx context.Context, id entity.Identifier)
}

// Registry routes updates to live mailboxes.
type Registry interface {
	Register(id entity.Identifier, r delivery.Recipient)
	UnregisterIf(id entity.Identifier, r delivery.Recipient) bool
	Deliver(updates []update.Update)
}

// Options configures a Handler.
type Options struct {
	Logger   *zap.Logger
	World    World
	Registry Registry
	// Encoder renders updates for this kind of transport.
	Encoder delivery.Encoder

	HeartbeatInterval  time.Duration
	ClientTimeout      time.Duration
	TimeUpdateInterval time.Duration
	MailboxSize        int
}

// Handler serves connections of one transport kind.
type Handler struct {
	logger    *zap.Logger
	world     World
	registry  Registry
	encode    delivery.Encoder
	heartbeat time.Duration
	timeout   time.Duration
	clockTick time.Duration
	mailbox   int
	active    atomic.Int64
}

// New creates a Handler.
//
// Precondition: opts.Logger, opts.World, opts.Registry and opts.Encoder must be non-nil.
func New(opts Options) *Handler {
	h := &Handler{
		logger:    opts.Logger,
		world:     opts.World,
		registry:  opts.Registry,
		encode:    opts.Encoder,
		heartbeat: opts.HeartbeatInterval,
		timeout:   opts.ClientTimeout,
		clockTick: opts.TimeUpdateInterval,
		mailbox:   opts.MailboxSize,
	}
	if h.heartbeat <= 0 {
		h.heartbeat = DefaultHeartbeatInterval
	}
	if h.timeout <= 0 {
		h.timeout = DefaultClientTimeout
	}
	if h.timeout <= h.heartbeat {
		h.timeout = 2 * h.heartbeat
	}
	if h.clockTick <= 0 {
		h.clockTick = DefaultTimeUpdateInterval
	}
	return h
}

// Active returns the number of connections currently being served.
func (h *Handler) Active() int { return int(h.active.Load()) }

// session is the state of one connection.
type session struct {
	h      *Handler
	t      Transport
	logger *zap.Logger
	cancel context.CancelFunc
	g      *errgroup.Group

	lastSeen atomic.Int64

	mu      sync.Mutex
	id      entity.Identifier
	mailbox *delivery.Mailbox
}

// Serve runs the connection until the client leaves, times out, or ctx is
// cancelled.
//
// Postcondition: The transport is closed, and if the client authenticated
// its mailbox is unregistered and closed and the character is saved.
func (h *Handler) Serve(ctx context.Context, t Transport) error {
	start := time.Now()
	h.active.Add(1)
	defer h.active.Add(-1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	s := &session{h: h, t: t, logger: h.logger, cancel: cancel, g: g}
	s.touch()
	t.OnActivity(s.touch)

	g.Go(func() error {
		<-gctx.Done()
		if err := t.Close(); err != nil {
			s.logger.Debug("closing transport", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error { return s.keepAlive(gctx) })
	g.Go(func() error {
		quit, err := s.run(gctx)
		if !quit {
			cancel()
		}
		return err
	})

	err := g.Wait()
	s.cleanup(context.WithoutCancel(ctx))

	s.logger.Info("connection closed",
		zap.String("character", s.character().String()),
		zap.Duration("duration", time.Since(start)),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *session) touch() { s.lastSeen.Store(time.Now().UnixNano()) }

func (s *session) idle() time.Duration {
	return time.Since(time.Unix(0, s.lastSeen.Load()))
}

func (s *session) character() entity.Identifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// run reads inbound messages: credentials first, then commands. quit is
// true when the client asked to leave, in which case the writer finishes
// the connection after draining.
func (s *session) run(ctx context.Context) (quit bool, err error) {
	id, err := s.authenticate(ctx)
	if err != nil {
		return false, nil
	}
	mb := delivery.NewMailbox(id, s.h.mailbox, s.h.encode)
	s.mu.Lock()
	s.id = id
	s.mailbox = mb
	s.mu.Unlock()
	log := s.logger.With(zap.String("character", id.String()))

	s.h.registry.Register(id, mb)
	s.g.Go(func() error { return s.write(ctx, mb) })
	s.g.Go(func() error { return s.pushClock(ctx, id, mb) })
	log.Info("connection authenticated")

	s.h.registry.Deliver(s.h.world.Command(ctx, command.Command{From: id, Verb: command.VerbRefresh}))

	for {
		line, err := s.t.ReadText(ctx)
		if err != nil {
			log.Debug("read ended", zap.Error(err))
			return false, nil
		}
		s.touch()
		cmd, ok := command.Parse(id, line)
		if !ok {
			log.Debug("received empty message")
			continue
		}
		s.h.registry.Deliver(s.h.world.Command(ctx, cmd))
		if cmd.Verb == command.VerbQuit {
			_ = mb.Close()
			return true, nil
		}
	}
}

// authenticate treats every inbound message as a session token until one
// resolves to a character.
func (s *session) authenticate(ctx context.Context) (entity.Identifier, error) {
	for {
		line, err := s.t.ReadText(ctx)
		if err != nil {
			return "", err
		}
		s.touch()
		token := strings.TrimSpace(line)
		if token == "" {
			continue
		}
		id, err := s.h.world.AuthenticateSession(ctx, token)
		if err == nil {
			return id, nil
		}
		msg := msgInvalidSession
		if !errors.Is(err, world.ErrUnauthenticated) {
			s.logger.Error("authenticating session", zap.Error(err))
			msg = msgSomethingWrong
		}
		frame, err := s.h.encode(update.Error("", msg))
		if err != nil {
			return "", err
		}
		if err := s.t.WriteText(ctx, frame); err != nil {
			return "", err
		}
	}
}

// write drains the mailbox to the transport. A closed mailbox ends the
// connection once its buffered frames are written.
func (s *session) write(ctx context.Context, mb *delivery.Mailbox) error {
	for {
		select {
		case frame, ok := <-mb.Events():
			if !ok {
				s.cancel()
				return nil
			}
			if err := s.t.WriteText(ctx, frame); err != nil {
				s.cancel()
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("writing frame: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// keepAlive pings the client every heartbeat and closes the connection
// when nothing has been heard from it within the client timeout.
func (s *session) keepAlive(ctx context.Context) error {
	ticker := time.NewTicker(s.h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if idle := s.idle(); idle > s.h.timeout {
				s.logger.Info("client timed out", zap.Duration("idle", idle))
				s.cancel()
				return nil
			}
			if err := s.t.Ping(ctx); err != nil {
				s.logger.Debug("ping failed", zap.Error(err))
				s.cancel()
				return nil
			}
		}
	}
}

func (s *session) pushClock(ctx context.Context, id entity.Identifier, mb *delivery.Mailbox) error {
	ticker := time.NewTicker(s.h.clockTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := mb.Push(update.Time(id, s.h.world.Clock().DateTime())); err != nil {
				if errors.Is(err, delivery.ErrClosed) {
					return nil
				}
				s.logger.Debug("dropping time update", zap.Error(err))
			}
		}
	}
}

func (s *session) cleanup(ctx context.Context) {
	s.mu.Lock()
	id, mb := s.id, s.mailbox
	s.mu.Unlock()
	if mb == nil {
		return
	}
	s.h.registry.UnregisterIf(id, mb)
	_ = mb.Close()
	s.h.world.Disconnect(ctx, id)
}
