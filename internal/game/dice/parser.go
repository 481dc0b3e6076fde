package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Bounds on parsed expressions. Damage never needs more.
const (
	MaxCount    = 100
	MaxSides    = 1000
	MaxModifier = 1000
)

var exprPattern = regexp.MustCompile(`^(\d*)d(\d+)(?:([+-])(\d+))?$`)

// Expression is a parsed "NdS+M" dice expression.
//
// Invariant: 1 <= Count <= MaxCount, 2 <= Sides <= MaxSides and
// |Modifier| <= MaxModifier.
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
}

// Parse reads "d6", "2d6", "2d6+3" or "1d4-1", ignoring case and spaces.
//
// Postcondition: Returns an Expression satisfying its invariant, or an error.
func Parse(raw string) (Expression, error) {
	s := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	m := exprPattern.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", raw)
	}

	e := Expression{Raw: s, Count: 1}
	var err error
	if m[1] != "" {
		if e.Count, err = strconv.Atoi(m[1]); err != nil {
			return Expression{}, fmt.Errorf("dice: die count in %q: %w", raw, err)
		}
	}
	if e.Sides, err = strconv.Atoi(m[2]); err != nil {
		return Expression{}, fmt.Errorf("dice: die sides in %q: %w", raw, err)
	}
	if m[4] != "" {
		if e.Modifier, err = strconv.Atoi(m[4]); err != nil {
			return Expression{}, fmt.Errorf("dice: modifier in %q: %w", raw, err)
		}
		if m[3] == "-" {
			e.Modifier = -e.Modifier
		}
	}

	if e.Count < 1 || e.Count > MaxCount {
		return Expression{}, fmt.Errorf("dice: die count in %q must be 1-%d", raw, MaxCount)
	}
	if e.Sides < 2 || e.Sides > MaxSides {
		return Expression{}, fmt.Errorf("dice: die sides in %q must be 2-%d", raw, MaxSides)
	}
	if e.Modifier < -MaxModifier || e.Modifier > MaxModifier {
		return Expression{}, fmt.Errorf("dice: modifier in %q must be between -%d and %d", raw, MaxModifier, MaxModifier)
	}
	return e, nil
}

// MustParse parses raw and panics on error. For package-level values only.
func MustParse(raw string) Expression {
	e, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return e
}

// Min returns the smallest total the expression can roll.
func (e Expression) Min() int { return e.Count + e.Modifier }

// Max returns the largest total the expression can roll.
func (e Expression) Max() int { return e.Count*e.Sides + e.Modifier }

func (e Expression) String() string { return e.Raw }
