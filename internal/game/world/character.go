package world

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

// Character is a mobile entity: a player's hero or a spawned mob.
//
// Invariant: 0 <= Vitality <= MaxVitality(). Every mutator clamps.
type Character struct {
	ID          entity.Identifier   `json:"id"`
	Name        string              `json:"name"`
	Prototype   string              `json:"prototype"`
	Description update.Markup       `json:"description"`
	Vitality    int                 `json:"vitality"`
	Location    entity.Identifier   `json:"location"`
	Inventory   Inventory           `json:"inventory"`
	Enemies     []entity.Identifier `json:"enemies"`
	BusyUntil   time.Time           `json:"busy_until"`
	Activity    Activity            `json:"activity"`
	Attributes  Attributes          `json:"attributes"`
	Player      bool                `json:"player"`
}

// EntityID implements entity.Entity.
func (c *Character) EntityID() entity.Identifier { return c.ID }

// Clone implements entity.Entity.
func (c *Character) Clone() *Character {
	out := *c
	out.Description = cloneMarkup(c.Description)
	out.Inventory = c.Inventory.Clone()
	out.Enemies = slices.Clone(c.Enemies)
	return &out
}

// MaxVitality is derived from stamina.
func (c *Character) MaxVitality() int { return int(c.Attributes.Stamina) }

// IsAlive reports whether vitality is above zero.
func (c *Character) IsAlive() bool { return c.Vitality > 0 }

// HealthPercent returns vitality as a percentage of the maximum.
func (c *Character) HealthPercent() int {
	maxV := c.MaxVitality()
	if maxV <= 0 {
		return 0
	}
	return c.Vitality * 100 / maxV
}

// SetVitality assigns v clamped to [0, MaxVitality()].
func (c *Character) SetVitality(v int) {
	c.Vitality = min(max(v, 0), c.MaxVitality())
}

// Harm reduces vitality by amount, never below zero.
//
// Postcondition: Returns the vitality actually lost.
func (c *Character) Harm(amount int) int {
	before := c.Vitality
	c.SetVitality(c.Vitality - max(amount, 0))
	return before - c.Vitality
}

// Restore raises vitality by amount, never above the maximum.
//
// Postcondition: Returns the vitality actually gained.
func (c *Character) Restore(amount int) int {
	before := c.Vitality
	c.SetVitality(c.Vitality + max(amount, 0))
	return c.Vitality - before
}

// AddEnemy inserts id into the sorted enemy set.
func (c *Character) AddEnemy(id entity.Identifier) {
	i, found := slices.BinarySearch(c.Enemies, id)
	if !found {
		c.Enemies = slices.Insert(c.Enemies, i, id)
	}
}

// RemoveEnemy deletes id from the enemy set.
func (c *Character) RemoveEnemy(id entity.Identifier) {
	if i, found := slices.BinarySearch(c.Enemies, id); found {
		c.Enemies = slices.Delete(c.Enemies, i, i+1)
	}
}

// ClearEnemies empties the enemy set.
func (c *Character) ClearEnemies() { c.Enemies = nil }

// HasEnemy reports whether id is in the enemy set.
func (c *Character) HasEnemy(id entity.Identifier) bool {
	_, found := slices.BinarySearch(c.Enemies, id)
	return found
}

// Busy marks the character occupied with activity until now+d.
func (c *Character) Busy(activity Activity, now time.Time, d time.Duration) {
	c.Activity = activity
	c.BusyUntil = now.Add(d)
}

// IsBusy reports whether the character is still occupied at now.
func (c *Character) IsBusy(now time.Time) bool {
	return now.Before(c.BusyUntil)
}

// Doing returns the current activity, or Nothing once the busy period ends.
func (c *Character) Doing(now time.Time) Activity {
	if c.IsBusy(now) {
		return c.Activity
	}
	return Nothing
}

// Describe returns the character's markup.
func (c *Character) Describe() update.Markup {
	m := cloneMarkup(c.Description)
	if m.Text == "" {
		m.Text = fmt.Sprintf("You see %s.", c.Name)
	}
	return m
}

// Location is a place characters occupy and move between.
type Location struct {
	ID          entity.Identifier               `json:"id"`
	Description update.Markup                   `json:"description"`
	Exits       map[Direction]entity.Identifier `json:"exits"`
	Inventory   Inventory                       `json:"inventory"`
	Population  Population                      `json:"population"`
	ItemSpawns  []SpawnRule                     `json:"item_spawns"`
	MobSpawns   []SpawnRule                     `json:"mob_spawns"`
}

// SpawnRule places up to Max instances of the named prototype, each tick
// succeeding with probability 1/Chance.
type SpawnRule struct {
	Name   string `json:"name" yaml:"name"`
	Max    int    `json:"max" yaml:"max"`
	Chance int    `json:"chance" yaml:"chance"`
}

// NewLocation returns an empty location.
func NewLocation(id entity.Identifier) *Location {
	return &Location{ID: id, Exits: make(map[Direction]entity.Identifier)}
}

// EntityID implements entity.Entity.
func (l *Location) EntityID() entity.Identifier { return l.ID }

// Clone implements entity.Entity.
func (l *Location) Clone() *Location {
	out := *l
	out.Description = cloneMarkup(l.Description)
	out.Exits = make(map[Direction]entity.Identifier, len(l.Exits))
	for d, id := range l.Exits {
		out.Exits[d] = id
	}
	out.Inventory = l.Inventory.Clone()
	out.Population = l.Population.Clone()
	out.ItemSpawns = slices.Clone(l.ItemSpawns)
	out.MobSpawns = slices.Clone(l.MobSpawns)
	return &out
}

// Exit returns the destination in direction d.
func (l *Location) Exit(d Direction) (entity.Identifier, bool) {
	id, ok := l.Exits[d]
	return id, ok
}

// ExitNames returns the available directions in display order.
func (l *Location) ExitNames() []string {
	return sortedDirections(l.Exits)
}

// Describe returns the location's markup with any visible items appended.
func (l *Location) Describe() update.Markup {
	m := cloneMarkup(l.Description)
	if l.Inventory.Len() > 0 {
		m.Text += "\n\nYou see " + strings.Join(l.Inventory.Names(), ", ") + " here."
	}
	return m
}
