// Package scheduler drives the world's two periodic sweeps: the slow world
// tick and the fast melee round.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/textcamp/internal/game/clock"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

// Defaults for the two loop intervals.
const (
	DefaultTickInterval  = 5 * time.Second
	DefaultMeleeInterval = time.Second
)

// Simulation is the world as seen by the scheduler.
type Simulation interface {
	Tick() []update.Update
	Melee() []update.Update
	Clock() clock.Clock
	Counts() (characters, locations int)
}

// Sink receives the updates each sweep produces.
type Sink interface {
	Deliver([]update.Update)
}

// Scheduler runs the tick and melee loops against one Simulation.
//
// Invariant: each loop runs at most one sweep at a time; the two loops are
// not synchronised with each other.
type Scheduler struct {
	logger *zap.Logger
	sim    Simulation
	sink   Sink
	tick   time.Duration
	melee  time.Duration

	ticks  atomic.Uint64
	rounds atomic.Uint64
}

// New creates a stopped Scheduler.
//
// Precondition: logger, sim and sink must be non-nil; non-positive
// intervals fall back to the defaults.
func New(logger *zap.Logger, sim Simulation, sink Sink, tick, melee time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if melee <= 0 {
		melee = DefaultMeleeInterval
	}
	return &Scheduler{
		logger: logger,
		sim:    sim,
		sink:   sink,
		tick:   tick,
		melee:  melee,
	}
}

// Run blocks running both loops until ctx is cancelled.
//
// Postcondition: Returns nil once both loops have stopped.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		zap.Duration("tick_interval", s.tick),
		zap.Duration("melee_interval", s.melee),
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop(ctx, s.tick, s.RunTick) })
	g.Go(func() error { return loop(ctx, s.melee, s.RunMelee) })
	err := g.Wait()
	s.logger.Info("scheduler stopped",
		zap.Uint64("ticks", s.ticks.Load()),
		zap.Uint64("rounds", s.rounds.Load()),
	)
	return err
}

func loop(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn()
		}
	}
}

// RunTick performs one world tick and delivers its updates.
func (s *Scheduler) RunTick() {
	start := time.Now()
	updates := s.sim.Tick()
	s.sink.Deliver(updates)
	s.ticks.Add(1)
	s.report("tick", start, len(updates))
}

// RunMelee performs one melee round and delivers its updates.
func (s *Scheduler) RunMelee() {
	start := time.Now()
	updates := s.sim.Melee()
	s.sink.Deliver(updates)
	s.rounds.Add(1)
	s.report("melee", start, len(updates))
}

func (s *Scheduler) report(sweep string, start time.Time, updates int) {
	c := s.sim.Clock()
	characters, locations := s.sim.Counts()
	s.logger.Debug("sweep complete",
		zap.String("sweep", sweep),
		zap.Uint64("tick", c.Tick),
		zap.String("clock", c.Dump()),
		zap.Int("characters", characters),
		zap.Int("locations", locations),
		zap.Int("updates", updates),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Ticks returns the number of completed world ticks.
func (s *Scheduler) Ticks() uint64 { return s.ticks.Load() }

// Rounds returns the number of completed melee rounds.
func (s *Scheduler) Rounds() uint64 { return s.rounds.Load() }
