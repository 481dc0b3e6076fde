package world

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/game/clock"
	"github.com/cory-johannsen/textcamp/internal/game/command"
	"github.com/cory-johannsen/textcamp/internal/game/dice"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

// Lock ranks of the two stores. Locations are always locked first.
const (
	rankLocations = iota
	rankCharacters
)

// DefaultCommitAttempts bounds how often a command is re-run after losing a
// race with another writer.
const DefaultCommitAttempts = 5

// Options configures a World.
type Options struct {
	Logger     *zap.Logger
	Characters CharacterRepository
	Auth       Authenticator
	// Random drives spawning and mob names. Defaults to a crypto source.
	Random dice.Source
	// Damage decides melee damage. Defaults to FixedDamage(1).
	Damage Damage
	// StartTick positions the clock. Zero means clock.DefaultStartTick.
	StartTick uint64
	// RegenPerTick is the vitality regained per tick. Zero means 1.
	RegenPerTick int
	// CommitAttempts bounds conflict retries. Zero means DefaultCommitAttempts.
	CommitAttempts int
	// Now is the wall clock used for busy checks. Defaults to time.Now.
	Now func() time.Time
	// Fatal terminates the process. Defaults to Logger.Fatal.
	Fatal func(msg string, fields ...zap.Field)
}

// World owns every live entity and prototype, and coordinates commands
// with the tick and melee sweeps.
type World struct {
	logger     *zap.Logger
	characters *entity.Store[*Character]
	locations  *entity.Store[*Location]

	items *Prototypes[ItemPrototype, Item]
	mobs  *Prototypes[MobPrototype, *Character]

	repo     CharacterRepository
	auth     Authenticator
	random   dice.Source
	damage   Damage
	regen    int
	attempts int
	now      func() time.Time
	fatal    func(msg string, fields ...zap.Field)
	registry *command.Registry
	handlers map[command.Verb]handler

	clockMu sync.RWMutex
	clock   clock.Clock
}

// New creates an empty World.
//
// Precondition: opts.Logger, opts.Characters and opts.Auth must be non-nil.
// Postcondition: Returns a World with no locations and no characters.
func New(opts Options) *World {
	w := &World{
		logger:     opts.Logger,
		characters: entity.NewStore[*Character]("character", rankCharacters),
		locations:  entity.NewStore[*Location]("location", rankLocations),
		items:      NewPrototypes[ItemPrototype, Item](),
		mobs:       NewPrototypes[MobPrototype, *Character](),
		repo:       opts.Characters,
		auth:       opts.Auth,
		random:     opts.Random,
		damage:     opts.Damage,
		regen:      opts.RegenPerTick,
		attempts:   opts.CommitAttempts,
		now:        opts.Now,
		fatal:      opts.Fatal,
		registry:   command.DefaultRegistry(),
		clock:      clock.New(opts.StartTick),
	}
	if w.random == nil {
		w.random = dice.NewCryptoSource()
	}
	if w.damage == nil {
		w.damage = FixedDamage(1)
	}
	if w.regen == 0 {
		w.regen = 1
	}
	if w.attempts <= 0 {
		w.attempts = DefaultCommitAttempts
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.fatal == nil {
		w.fatal = w.logger.Fatal
	}
	if opts.StartTick == 0 {
		w.clock = clock.New(clock.DefaultStartTick)
	}
	w.handlers = w.commandHandlers()
	return w
}

// ItemPrototypes returns the item template registry.
func (w *World) ItemPrototypes() *Prototypes[ItemPrototype, Item] { return w.items }

// MobPrototypes returns the mob template registry.
func (w *World) MobPrototypes() *Prototypes[MobPrototype, *Character] { return w.mobs }

// AddLocation stores l, replacing any location with the same identifier.
func (w *World) AddLocation(l *Location) { w.locations.Insert(l) }

// Location returns a copy of the location stored under id.
func (w *World) Location(id entity.Identifier) (*Location, error) { return w.locations.Get(id) }

// Character returns a copy of the character stored under id.
func (w *World) Character(id entity.Identifier) (*Character, error) { return w.characters.Get(id) }

// Clock returns the current world clock.
func (w *World) Clock() clock.Clock {
	w.clockMu.RLock()
	defer w.clockMu.RUnlock()
	return w.clock
}

func (w *World) advanceClock() (before, after clock.Clock) {
	w.clockMu.Lock()
	defer w.clockMu.Unlock()
	before = w.clock
	w.clock = w.clock.Advance()
	return before, w.clock
}

// Counts reports the number of live characters and locations.
func (w *World) Counts() (characters, locations int) {
	return w.characters.Len(), w.locations.Len()
}

// Validate checks the invariants the world needs to accept players.
//
// Postcondition: Returns nil, or a Fatal error naming what is missing.
func (w *World) Validate() error {
	var errs []error
	if _, ok := w.mobs.Get(StarterPrototype); !ok {
		errs = append(errs, fmt.Errorf("missing %s prototype", StarterPrototype))
	}
	if !w.locations.Contains(entity.Origin) {
		errs = append(errs, fmt.Errorf("missing %s location", entity.Origin))
	}
	for _, id := range w.locations.IDs() {
		l, err := w.locations.Get(id)
		if err != nil {
			continue
		}
		for d, to := range l.Exits {
			if !w.locations.Contains(to) {
				errs = append(errs, fmt.Errorf("location %q: exit %s targets unknown location %q", id, d, to))
			}
		}
	}
	if len(errs) > 0 {
		return fatalError(errors.Join(errs...))
	}
	return nil
}

// MustValidate terminates the process through the fatal hook when Validate fails.
func (w *World) MustValidate() {
	if err := w.Validate(); err != nil {
		w.fatal("world failed validation", zap.Error(err))
	}
}

// Tx stages reads and writes of one command against both stores.
type Tx struct {
	w     *World
	chars *entity.Batch[*Character]
	locs  *entity.Batch[*Location]
}

func (w *World) begin() *Tx {
	return &Tx{w: w, chars: w.characters.Batch(), locs: w.locations.Batch()}
}

// Character returns the character as seen by this transaction.
func (tx *Tx) Character(id entity.Identifier) (*Character, error) { return tx.chars.Get(id) }

// Location returns the location as seen by this transaction.
func (tx *Tx) Location(id entity.Identifier) (*Location, error) { return tx.locs.Get(id) }

// PutCharacter stages c.
func (tx *Tx) PutCharacter(c *Character) { tx.chars.Put(c) }

// PutLocation stages l.
func (tx *Tx) PutLocation(l *Location) { tx.locs.Put(l) }

// RemoveCharacter stages the removal of id.
func (tx *Tx) RemoveCharacter(id entity.Identifier) { tx.chars.Remove(id) }

func (tx *Tx) commit() error {
	return entity.Commit(tx.locs, tx.chars)
}

// names resolves member identifiers to display names, skipping any that
// are no longer resident.
func (tx *Tx) names(ids []entity.Identifier) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if c, err := tx.Character(id); err == nil {
			out = append(out, c.Name)
		}
	}
	return out
}

// transact runs fn against a fresh Tx and commits it, re-running fn from
// scratch whenever the commit loses a race. fn must not have side effects
// outside the Tx other than idempotent persistence.
//
// A User error from fn is returned only once the reads it was based on are
// confirmed current, so a rejection never rests on stale state.
func (w *World) transact(ctx context.Context, fn func(tx *Tx) error) error {
	for attempt := 1; attempt <= w.attempts; attempt++ {
		tx := w.begin()
		ferr := fn(tx)
		if ferr != nil && !IsUserError(ferr) {
			return ferr
		}
		var err error
		if ferr != nil {
			// Nothing staged by a rejected command is applied.
			err = entity.Validate(tx.locs, tx.chars)
		} else {
			err = tx.commit()
		}
		if err == nil {
			return ferr
		}
		if !errors.Is(err, entity.ErrConflict) {
			return systemError(err)
		}
		w.logger.Debug("command lost a race, retrying",
			zap.Int("attempt", attempt),
		)
		if err := ctx.Err(); err != nil {
			return systemError(err)
		}
	}
	return systemErrorf("giving up after %d attempts: %w", w.attempts, entity.ErrConflict)
}
