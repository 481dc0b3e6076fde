package world

import (
	"fmt"
	"slices"
	"sync"

	"github.com/cory-johannsen/textcamp/internal/game/dice"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

// StarterPrototype names the mob prototype every new hero is created from.
const StarterPrototype = "HERO"

// ItemPrototype is the template items are stamped from.
type ItemPrototype struct {
	// Key is the prototype name spawn rules refer to.
	Key         string
	Name        string
	Description update.Markup
}

// PrototypeName implements Prototyped.
func (p ItemPrototype) PrototypeName() string { return p.Key }

// Create stamps a fresh item with a new identifier.
func (p ItemPrototype) Create(_ dice.Source) Item {
	return Item{
		ID:          entity.NewIdentifier(),
		Prototype:   p.Key,
		Name:        p.Name,
		Description: cloneMarkup(p.Description),
	}
}

// MobPrototype is the template characters are stamped from.
type MobPrototype struct {
	// Key is the prototype name spawn rules refer to.
	Key         string
	Name        string
	Description update.Markup
	Attributes  Attributes
	// Vitality is the starting vitality. Zero means full.
	Vitality int
}

// PrototypeName implements Prototyped.
func (p MobPrototype) PrototypeName() string { return p.Key }

// Create stamps a fresh character with a new identifier and a name made
// unique by a random numeric suffix.
func (p MobPrototype) Create(src dice.Source) *Character {
	c := &Character{
		ID:          entity.NewIdentifier(),
		Prototype:   p.Key,
		Name:        fmt.Sprintf("%s%d", p.Name, src.Intn(256)),
		Description: cloneMarkup(p.Description),
		Location:    entity.Origin,
		Attributes:  p.Attributes,
		Activity:    Nothing,
	}
	if p.Vitality > 0 {
		c.SetVitality(p.Vitality)
	} else {
		c.SetVitality(c.MaxVitality())
	}
	return c
}

// Prototyped is implemented by templates held in a Prototypes registry.
type Prototyped[T any] interface {
	PrototypeName() string
	Create(src dice.Source) T
}

// Prototypes maps prototype names to templates.
//
// Registries are filled during bootstrap and only read afterwards.
type Prototypes[P Prototyped[T], T any] struct {
	mu     sync.RWMutex
	things map[string]P
}

// NewPrototypes returns an empty registry.
func NewPrototypes[P Prototyped[T], T any]() *Prototypes[P, T] {
	return &Prototypes[P, T]{things: make(map[string]P)}
}

// Add registers p under its prototype name, replacing any previous entry.
func (r *Prototypes[P, T]) Add(p P) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.things[p.PrototypeName()] = p
}

// Get returns the template registered under name.
func (r *Prototypes[P, T]) Get(name string) (P, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.things[name]
	return p, ok
}

// Create stamps a new instance of the named template.
//
// Postcondition: Returns (instance, true), or the zero value and false when
// no template has that name.
func (r *Prototypes[P, T]) Create(name string, src dice.Source) (T, bool) {
	p, ok := r.Get(name)
	if !ok {
		var zero T
		return zero, false
	}
	return p.Create(src), true
}

// Names returns every registered name in ascending order.
func (r *Prototypes[P, T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.things))
	for n := range r.things {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered templates.
func (r *Prototypes[P, T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.things)
}
