package world

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

// Melee resolves one combat round in every location.
//
// Combatants are chosen from a snapshot taken when a location is visited:
// present, alive, not busy, and with at least one enemy. Each combatant
// strikes the first of its enemies (in identifier order) that is also a
// combatant. Attacks are applied one after another, so a combatant killed
// earlier in the round neither attacks nor is attacked again.
//
// The round holds the locations lock and then the characters lock for its
// whole duration, so it serializes with the regeneration sweep.
func (w *World) Melee() []update.Update {
	var out []update.Update
	now := w.now()
	w.locations.Sweep(func(lv entity.View[*Location]) {
		w.characters.Sweep(func(cv entity.View[*Character]) {
			for _, id := range lv.IDs() {
				l, ok := lv.Get(id)
				if !ok {
					continue
				}
				out = append(out, w.meleeAt(lv, cv, l, now)...)
			}
		})
	})
	return out
}

func (w *World) meleeAt(lv entity.View[*Location], cv entity.View[*Character], l *Location, now time.Time) []update.Update {
	combatants := make(map[entity.Identifier]*Character)
	var order []entity.Identifier
	for _, id := range l.Population.IDs() {
		c, ok := cv.Get(id)
		if !ok {
			continue
		}
		if !c.IsAlive() || c.IsBusy(now) || len(c.Enemies) == 0 {
			continue
		}
		combatants[id] = c
		order = append(order, id)
	}
	if len(order) == 0 {
		return nil
	}

	var out []update.Update
	touched := make(map[entity.Identifier]bool)
	var dead []entity.Identifier
	for _, id := range order {
		attacker := combatants[id]
		if !attacker.IsAlive() {
			continue
		}
		var target *Character
		for _, enemy := range attacker.Enemies {
			if c, ok := combatants[enemy]; ok && c.IsAlive() {
				target = c
				break
			}
		}
		if target == nil {
			continue
		}

		target.Harm(w.damage.Amount(attacker, target))
		touched[target.ID] = true
		out = append(out, update.Combat(target.ID, "You've been hurt!"))
		if target.IsAlive() {
			out = append(out, update.Combat(attacker.ID, fmt.Sprintf("You hit %s!", target.Name)))
		} else {
			out = append(out, update.Combat(attacker.ID, fmt.Sprintf("You killed %s!", target.Name)))
			for _, c := range combatants {
				if c.HasEnemy(target.ID) {
					c.RemoveEnemy(target.ID)
					touched[c.ID] = true
				}
			}
			dead = append(dead, target.ID)
		}
		out = append(out,
			update.Health(target.ID, target.HealthPercent()),
			update.Health(attacker.ID, attacker.HealthPercent()),
		)
	}

	for _, id := range order {
		c := combatants[id]
		if touched[id] && c.IsAlive() {
			cv.Put(c)
		}
	}
	if len(dead) == 0 {
		return out
	}
	for _, id := range dead {
		l.Population.Remove(id)
		cv.Remove(id)
	}
	lv.Put(l)
	remaining := l.Population.IDs()
	names := namesOf(cv.Get, remaining)
	for _, id := range remaining {
		out = append(out, update.Population(id, names))
	}
	return out
}
