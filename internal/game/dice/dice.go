// Package dice supplies the randomness behind spawning and melee: a Source
// abstraction, and "NdS+M" expressions used by damage policies.
package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Source is the randomness provider.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// RollResult records one evaluation of an expression.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string
	Dice       []int
	Modifier   int
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String renders the roll for debug logs, e.g. "2d6+3: 4+5 +3 = 12".
func (r RollResult) String() string {
	faces := make([]string, len(r.Dice))
	for i, d := range r.Dice {
		faces[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("%s: %s %+d = %d", r.Expression, strings.Join(faces, "+"), r.Modifier, r.Total())
}
