package world

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/textcamp/internal/game/dice"
)

// Damage decides how much vitality an attack removes.
type Damage interface {
	Amount(attacker, target *Character) int
}

// FixedDamage always deals the same amount.
type FixedDamage int

// Amount implements Damage.
func (d FixedDamage) Amount(_, _ *Character) int { return int(d) }

// DiceDamage rolls an expression such as "1d4+1" for every attack.
type DiceDamage struct {
	Expr   dice.Expression
	Roller *dice.Roller
}

// Amount implements Damage. A roll below zero deals nothing.
func (d DiceDamage) Amount(_, _ *Character) int {
	return max(d.Roller.Roll(d.Expr).Total(), 0)
}

// SkillDamage scales a base amount by a melee skill attempt of the attacker:
// a critical success doubles it and a critical failure misses.
type SkillDamage struct {
	Base  Damage
	Skill Skill
	Src   dice.Source
}

// Amount implements Damage.
func (d SkillDamage) Amount(attacker, target *Character) int {
	base := d.Base.Amount(attacker, target)
	switch d.Skill.Attempt(attacker.Attributes, uint8(d.Src.Intn(256))) {
	case CriticalSuccess:
		return base * 2
	case CriticalFail:
		return 0
	default:
		return base
	}
}

// skillPrefix marks a damage policy scaled by MeleeSkill, e.g. "skill:1d4".
const skillPrefix = "skill:"

// ParseDamage builds a Damage from configuration: a plain integer is a
// fixed amount, anything else is a dice expression. A "skill:" prefix
// scales the rest by the attacker's MeleeSkill.
//
// Precondition: roller must be non-nil when policy uses dice or skill.
func ParseDamage(policy string, roller *dice.Roller) (Damage, error) {
	policy = strings.TrimSpace(policy)
	if rest, ok := strings.CutPrefix(policy, skillPrefix); ok {
		base, err := ParseDamage(rest, roller)
		if err != nil {
			return nil, err
		}
		return SkillDamage{Base: base, Skill: MeleeSkill, Src: roller}, nil
	}
	if policy == "" {
		return FixedDamage(1), nil
	}
	if n, err := strconv.Atoi(policy); err == nil {
		if n < 0 {
			return nil, fmt.Errorf("damage must not be negative, got %d", n)
		}
		return FixedDamage(n), nil
	}
	expr, err := dice.Parse(policy)
	if err != nil {
		return nil, fmt.Errorf("parsing damage %q: %w", policy, err)
	}
	if expr.Min() < 0 {
		return nil, fmt.Errorf("damage %q can roll below zero", policy)
	}
	return DiceDamage{Expr: expr, Roller: roller}, nil
}
