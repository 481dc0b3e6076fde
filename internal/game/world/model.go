// Package world holds the live simulation: characters, locations, prototypes,
// the command processor, and the tick and melee sweeps.
package world

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

// Direction names an exit from a location.
type Direction string

// The closed set of exit directions.
const (
	Up    Direction = "up"
	Down  Direction = "down"
	North Direction = "north"
	East  Direction = "east"
	South Direction = "south"
	West  Direction = "west"
	In    Direction = "in"
	Out   Direction = "out"
)

// StandardDirections contains every direction in display order.
var StandardDirections = []Direction{Up, Down, North, East, South, West, In, Out}

// ParseDirection resolves a direction name case-insensitively.
//
// Postcondition: Returns (direction, true) for a known name, or ("", false).
func ParseDirection(s string) (Direction, bool) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if d.IsStandard() {
		return d, true
	}
	return "", false
}

// IsStandard reports whether d is one of the known directions.
func (d Direction) IsStandard() bool {
	return slices.Contains(StandardDirections, d)
}

// Opposite returns the reverse of d, or "" for an unknown direction.
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	case Up:
		return Down
	case Down:
		return Up
	case In:
		return Out
	case Out:
		return In
	default:
		return ""
	}
}

// Activity tags what a busy character is doing.
type Activity string

const (
	Nothing  Activity = "nothing"
	Casting  Activity = "casting"
	Fighting Activity = "fighting"
)

// ParseActivity resolves an activity name, defaulting to Nothing.
func ParseActivity(s string) Activity {
	switch Activity(strings.ToLower(s)) {
	case Casting:
		return Casting
	case Fighting:
		return Fighting
	default:
		return Nothing
	}
}

func (a Activity) String() string { return string(a) }

func sortedDirections(exits map[Direction]entity.Identifier) []string {
	out := make([]string, 0, len(exits))
	for _, d := range StandardDirections {
		if _, ok := exits[d]; ok {
			out = append(out, string(d))
		}
	}
	return out
}

// Validate reports an error for an unknown direction.
func (d Direction) Validate() error {
	if !d.IsStandard() {
		return fmt.Errorf("unknown direction %q", string(d))
	}
	return nil
}
