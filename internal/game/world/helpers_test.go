package world

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/textcamp/internal/game/command"
	"github.com/cory-johannsen/textcamp/internal/game/dice"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

const hallID entity.Identifier = "HALL"

type fakeRepo struct {
	mu    sync.Mutex
	chars map[entity.Identifier]*Character
	err   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{chars: make(map[entity.Identifier]*Character)}
}

func (r *fakeRepo) LoadCharacter(_ context.Context, id entity.Identifier) (*Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chars[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrCharacterNotFound)
	}
	return c.Clone(), nil
}

func (r *fakeRepo) SaveCharacter(_ context.Context, c *Character) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.chars[c.ID] = c.Clone()
	return nil
}

func (r *fakeRepo) saved(id entity.Identifier) (*Character, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chars[id]
	return c, ok
}

type fakeAuth struct {
	mu       sync.Mutex
	otps     map[string]string
	accounts map[string]entity.Identifier
	sessions map[string]entity.Identifier
	next     int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		otps:     make(map[string]string),
		accounts: make(map[string]entity.Identifier),
		sessions: make(map[string]entity.Identifier),
	}
}

func (a *fakeAuth) StartAuth(_ context.Context, email string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.otps[fmt.Sprintf("otp-%d", a.next)] = email
	return nil
}

func (a *fakeAuth) ConsumeOTP(_ context.Context, token string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	email, ok := a.otps[token]
	delete(a.otps, token)
	return email, ok
}

func (a *fakeAuth) Account(_ context.Context, email string) (entity.Identifier, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.accounts[email]
	return id, ok, nil
}

func (a *fakeAuth) CreateAccount(_ context.Context, email string, id entity.Identifier) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[email] = id
	return nil
}

func (a *fakeAuth) StartSession(_ context.Context, id entity.Identifier) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	token := fmt.Sprintf("session-%d", a.next)
	a.sessions[token] = id
	return token, nil
}

func (a *fakeAuth) ValidSession(_ context.Context, token string) (entity.Identifier, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.sessions[token]
	return id, ok
}

type testWorld struct {
	*World
	repo *fakeRepo
	auth *fakeAuth
	now  time.Time
}

// newTestWorld builds ORIGIN <-north/south-> HALL with a lantern at ORIGIN,
// plus HERO and RAT prototypes.
func newTestWorld(t *testing.T, mutators ...func(*Options)) *testWorld {
	t.Helper()
	tw := &testWorld{
		repo: newFakeRepo(),
		auth: newFakeAuth(),
		now:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	opts := Options{
		Logger:     zaptest.NewLogger(t),
		Characters: tw.repo,
		Auth:       tw.auth,
		Random:     dice.Fixed(7),
		Now:        func() time.Time { return tw.now },
		Fatal: func(msg string, fields ...zap.Field) {
			t.Fatalf("unexpected fatal: %s", msg)
		},
	}
	for _, m := range mutators {
		m(&opts)
	}
	w := New(opts)
	tw.World = w

	w.ItemPrototypes().Add(ItemPrototype{
		Key:         "LANTERN",
		Name:        "lantern",
		Description: update.Markup{Text: "A brass lantern."},
	})
	w.MobPrototypes().Add(MobPrototype{
		Key:        StarterPrototype,
		Name:       "Hero",
		Attributes: Attributes{Stamina: 10, Strength: 50, Agility: 50, Speed: 50},
	})
	w.MobPrototypes().Add(MobPrototype{
		Key:        "RAT",
		Name:       "Rat",
		Attributes: Attributes{Stamina: 3},
	})

	origin := NewLocation(entity.Origin)
	origin.Description = update.Markup{Text: "A dusty crossroads."}
	origin.Exits[North] = hallID
	lantern, ok := w.ItemPrototypes().Create("LANTERN", dice.Fixed(0))
	require.True(t, ok)
	origin.Inventory.Add(lantern)
	hall := NewLocation(hallID)
	hall.Description = update.Markup{Text: "A long hall."}
	hall.Exits[South] = entity.Origin
	w.AddLocation(origin)
	w.AddLocation(hall)
	require.NoError(t, w.Validate())
	return tw
}

// place puts a fresh character named name with the given stamina at loc.
func (tw *testWorld) place(t *testing.T, name string, stamina uint8, loc entity.Identifier) entity.Identifier {
	t.Helper()
	c := &Character{
		ID:         entity.NewIdentifier(),
		Name:       name,
		Prototype:  StarterPrototype,
		Location:   loc,
		Attributes: Attributes{Stamina: stamina},
		Player:     true,
	}
	c.SetVitality(c.MaxVitality())
	l, err := tw.locations.Get(loc)
	require.NoError(t, err)
	l.Population.Add(c.ID)
	tw.locations.Insert(l)
	tw.characters.Insert(c)
	return c.ID
}

func (tw *testWorld) run(id entity.Identifier, line string) []update.Update {
	cmd, ok := command.Parse(id, line)
	if !ok {
		return nil
	}
	return tw.Command(context.Background(), cmd)
}

func (tw *testWorld) mustCharacter(t *testing.T, id entity.Identifier) *Character {
	t.Helper()
	c, err := tw.Character(id)
	require.NoError(t, err)
	return c
}

func (tw *testWorld) mustLocation(t *testing.T, id entity.Identifier) *Location {
	t.Helper()
	l, err := tw.Location(id)
	require.NoError(t, err)
	return l
}

// populationsContaining counts the locations whose population holds id.
func (tw *testWorld) populationsContaining(t *testing.T, id entity.Identifier) int {
	t.Helper()
	n := 0
	for _, lid := range tw.locations.IDs() {
		if tw.mustLocation(t, lid).Population.Contains(id) {
			n++
		}
	}
	return n
}

func texts(updates []update.Update) []string {
	out := make([]string, 0, len(updates))
	for _, u := range updates {
		out = append(out, u.Text())
	}
	return out
}
