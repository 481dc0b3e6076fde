package telnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/config"
	"github.com/cory-johannsen/textcamp/internal/connection"
)

// Banner greets every Telnet client before the session token prompt.
const Banner = "Welcome to textcamp.\r\nPaste the session token from your login link and press enter."

// Accept failures back off from minAcceptDelay, doubling up to maxAcceptDelay.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// SessionHandler serves one connected client until it leaves.
// *connection.Handler satisfies it.
type SessionHandler interface {
	Serve(ctx context.Context, t connection.Transport) error
}

// Acceptor hands every Telnet client on its port to a SessionHandler.
// Stop closes the port and cancels the context of every live session.
type Acceptor struct {
	cfg     config.TelnetConfig
	handler SessionHandler
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener

	sessions sync.WaitGroup
	live     atomic.Int64
}

// NewAcceptor builds an Acceptor for cfg.Addr().
//
// Precondition: handler and logger must be non-nil.
func NewAcceptor(cfg config.TelnetConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ListenAndServe binds the port and serves clients until Stop. It returns
// nil after Stop and an error when the port cannot be bound.
func (a *Acceptor) ListenAndServe() error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	if a.ctx.Err() != nil {
		a.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	a.listener = ln
	a.mu.Unlock()

	a.logger.Info("telnet listening", zap.String("addr", ln.Addr().String()))

	delay := time.Duration(0)
	for {
		raw, err := ln.Accept()
		if err != nil {
			if a.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay = min(max(2*delay, minAcceptDelay), maxAcceptDelay)
			a.logger.Warn("accept failed", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-time.After(delay):
			case <-a.ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		// Stop cancels under mu before it waits, so no session is added
		// once the wait has begun.
		a.mu.Lock()
		if a.ctx.Err() != nil {
			a.mu.Unlock()
			_ = raw.Close()
			return nil
		}
		a.sessions.Add(1)
		a.mu.Unlock()
		go a.serve(raw)
	}
}

// serve runs one client from negotiation to hangup.
func (a *Acceptor) serve(raw net.Conn) {
	defer a.sessions.Done()
	started := time.Now()
	log := a.logger.With(zap.String("remote_addr", raw.RemoteAddr().String()))
	log.Info("telnet client connected", zap.Int64("sessions", a.live.Add(1)))
	defer func() {
		log.Info("telnet client gone",
			zap.Int64("sessions", a.live.Add(-1)),
			zap.Duration("duration", time.Since(started)),
		)
	}()

	conn := NewConn(raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
	defer conn.Close()

	if err := conn.Negotiate(); err != nil {
		log.Warn("telnet negotiation failed", zap.Error(err))
		return
	}
	if err := conn.WriteLine(Colorize(BrightCyan, Banner)); err != nil {
		log.Debug("writing banner", zap.Error(err))
		return
	}

	if err := a.handler.Serve(a.ctx, conn); err != nil && a.ctx.Err() == nil {
		log.Debug("session ended with error", zap.Error(err))
	}
}

// Stop closes the port, cancels every session and waits for them to
// return. It is safe to call more than once.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	a.cancel()
	if a.listener != nil {
		_ = a.listener.Close()
		a.listener = nil
	}
	a.mu.Unlock()

	a.sessions.Wait()
	a.logger.Info("telnet stopped")
}

// Addr is the bound address, or "" before ListenAndServe binds or after Stop.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Sessions reports the number of connected clients.
func (a *Acceptor) Sessions() int {
	return int(a.live.Load())
}
