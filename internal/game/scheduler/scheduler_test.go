package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/textcamp/internal/game/clock"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

type fakeSim struct {
	ticks  atomic.Int64
	melees atomic.Int64
}

func (f *fakeSim) Tick() []update.Update {
	f.ticks.Add(1)
	return []update.Update{update.Info("a", "tick")}
}

func (f *fakeSim) Melee() []update.Update {
	f.melees.Add(1)
	return []update.Update{update.Combat("a", "melee"), update.Combat("b", "melee")}
}

func (f *fakeSim) Clock() clock.Clock { return clock.New(clock.DefaultStartTick) }
func (f *fakeSim) Counts() (int, int) { return 2, 1 }

type fakeSink struct {
	mu  sync.Mutex
	got []update.Update
}

func (s *fakeSink) Deliver(u []update.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, u...)
}

func (s *fakeSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestNew_Defaults(t *testing.T) {
	s := New(zaptest.NewLogger(t), &fakeSim{}, &fakeSink{}, 0, -1)
	assert.Equal(t, DefaultTickInterval, s.tick)
	assert.Equal(t, DefaultMeleeInterval, s.melee)
}

func TestRunTickAndMelee_DeliverUpdates(t *testing.T) {
	sim := &fakeSim{}
	sink := &fakeSink{}
	s := New(zaptest.NewLogger(t), sim, sink, time.Hour, time.Hour)

	s.RunTick()
	s.RunMelee()
	s.RunMelee()

	assert.Equal(t, uint64(1), s.Ticks())
	assert.Equal(t, uint64(2), s.Rounds())
	assert.Equal(t, 5, sink.len())
}

func TestRun_DrivesBothLoopsUntilCancelled(t *testing.T) {
	sim := &fakeSim{}
	sink := &fakeSink{}
	s := New(zaptest.NewLogger(t), sim, sink, 20*time.Millisecond, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return sim.ticks.Load() >= 2 && sim.melees.Load() >= 4
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	ticks := sim.ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ticks, sim.ticks.Load())
	assert.Greater(t, sim.melees.Load(), sim.ticks.Load())
}
