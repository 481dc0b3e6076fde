// Package update defines the addressed notifications the world emits for
// delivery to connected clients.
package update

import (
	"encoding/json"
	"fmt"

	"github.com/cory-johannsen/textcamp/internal/game/clock"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

// Kind discriminates the payload of an Update.
type Kind string

const (
	KindInfo       Kind = "info"
	KindError      Kind = "error"
	KindCombat     Kind = "combat"
	KindExits      Kind = "exits"
	KindSpace      Kind = "space"
	KindCharacter  Kind = "character"
	KindItem       Kind = "item"
	KindPopulation Kind = "population"
	KindTime       Kind = "time"
	KindInventory  Kind = "inventory"
	KindHealth     Kind = "health"
)

// Markup is descriptive text plus clickable label to action pairs.
type Markup struct {
	Text   string            `json:"text"`
	Clicks map[string]string `json:"clicks"`
}

// Payload is the wire form of an Update: a tagged union.
//
// Body is a string for info, error and combat; a []string for exits,
// population and inventory; a Markup for space, character and item; a
// clock.DateTime for time; and an int in [0, 100] for health.
type Payload struct {
	Type Kind `json:"type"`
	Body any  `json:"body"`
}

// Update is a payload addressed to a single identifier.
type Update struct {
	To      entity.Identifier
	Payload Payload
}

// Encode serializes the payload as JSON.
func (u Update) Encode() ([]byte, error) {
	b, err := json.Marshal(u.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s update: %w", u.Payload.Type, err)
	}
	return b, nil
}

// Text returns the body of a text-bodied update, or "" for other kinds.
func (u Update) Text() string {
	s, _ := u.Payload.Body.(string)
	return s
}

func newUpdate(to entity.Identifier, kind Kind, body any) Update {
	return Update{To: to, Payload: Payload{Type: kind, Body: body}}
}

// Info returns an informational notice.
func Info(to entity.Identifier, text string) Update { return newUpdate(to, KindInfo, text) }

// Error returns an error notice.
func Error(to entity.Identifier, text string) Update { return newUpdate(to, KindError, text) }

// Combat returns a combat narration.
func Combat(to entity.Identifier, text string) Update { return newUpdate(to, KindCombat, text) }

// Exits returns the direction names leaving the recipient's location.
func Exits(to entity.Identifier, directions []string) Update {
	return newUpdate(to, KindExits, nonNil(directions))
}

// Space returns the description of a location.
func Space(to entity.Identifier, m Markup) Update { return newUpdate(to, KindSpace, m) }

// Character returns the description of a character.
func Character(to entity.Identifier, m Markup) Update { return newUpdate(to, KindCharacter, m) }

// Item returns the description of an item.
func Item(to entity.Identifier, m Markup) Update { return newUpdate(to, KindItem, m) }

// Population returns the display names present at the recipient's location.
func Population(to entity.Identifier, names []string) Update {
	return newUpdate(to, KindPopulation, nonNil(names))
}

// Time returns a calendar snapshot.
func Time(to entity.Identifier, dt clock.DateTime) Update { return newUpdate(to, KindTime, dt) }

// Inventory returns the names of the items the recipient carries.
func Inventory(to entity.Identifier, names []string) Update {
	return newUpdate(to, KindInventory, nonNil(names))
}

// Health returns the recipient's vitality as a percentage of its maximum.
//
// Postcondition: the body is clamped to [0, 100].
func Health(to entity.Identifier, percent int) Update {
	return newUpdate(to, KindHealth, min(max(percent, 0), 100))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// For returns the updates addressed to id, in order.
func For(updates []Update, id entity.Identifier) []Update {
	var out []Update
	for _, u := range updates {
		if u.To == id {
			out = append(out, u)
		}
	}
	return out
}

// OfKind returns the updates of the given kind, in order.
func OfKind(updates []Update, kind Kind) []Update {
	var out []Update
	for _, u := range updates {
		if u.Payload.Type == kind {
			out = append(out, u)
		}
	}
	return out
}
