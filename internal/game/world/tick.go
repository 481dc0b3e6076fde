package world

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/game/clock"
	"github.com/cory-johannsen/textcamp/internal/game/dice"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

// Tick advances the clock by one unit, then sweeps every location
// (spawning) and every character (regeneration and time notices).
func (w *World) Tick() []update.Update {
	before, after := w.advanceClock()
	var out []update.Update

	w.locations.Sweep(func(v entity.View[*Location]) {
		for _, id := range v.IDs() {
			l, ok := v.Get(id)
			if !ok {
				continue
			}
			out = append(out, w.spawn(v, l)...)
		}
	})

	return append(out, w.regenerate(clock.Narrative(before, after))...)
}

// regenerate restores vitality to every living character and hands the
// narrative lines to player characters.
func (w *World) regenerate(narrative []string) []update.Update {
	var out []update.Update
	w.characters.Sweep(func(v entity.View[*Character]) {
		for _, id := range v.IDs() {
			c, ok := v.Get(id)
			if !ok {
				continue
			}
			if c.IsAlive() && c.Restore(w.regen) > 0 {
				v.Put(c)
				if c.Player {
					out = append(out, update.Health(c.ID, c.HealthPercent()))
				}
			}
			if !c.Player {
				continue
			}
			for _, line := range narrative {
				out = append(out, update.Info(c.ID, line))
			}
		}
	})
	return out
}

// spawn applies the spawn rules of l. It runs under the locations lock and
// takes the characters lock only briefly, in rank order.
func (w *World) spawn(v entity.View[*Location], l *Location) []update.Update {
	changed := false
	for _, rule := range l.ItemSpawns {
		if !dice.Chance(w.random, rule.Chance) {
			continue
		}
		if l.Inventory.Count(rule.Name) >= rule.Max {
			continue
		}
		item, ok := w.items.Create(rule.Name, w.random)
		if !ok {
			w.logger.Warn("failed to spawn item",
				zap.String("prototype", rule.Name),
				zap.String("location", l.ID.String()),
			)
			continue
		}
		l.Inventory.Add(item)
		changed = true
	}

	var counts map[string]int
	spawned := false
	for _, rule := range l.MobSpawns {
		if !dice.Chance(w.random, rule.Chance) {
			continue
		}
		if counts == nil {
			counts = w.prototypeCounts(l.Population.IDs())
		}
		if counts[rule.Name] >= rule.Max {
			continue
		}
		mob, ok := w.mobs.Create(rule.Name, w.random)
		if !ok {
			w.logger.Warn("failed to spawn mob",
				zap.String("prototype", rule.Name),
				zap.String("location", l.ID.String()),
			)
			continue
		}
		mob.Location = l.ID
		w.characters.Insert(mob)
		l.Population.Add(mob.ID)
		counts[rule.Name]++
		spawned = true
	}

	if !changed && !spawned {
		return nil
	}
	v.Put(l)
	if !spawned {
		return nil
	}
	members := l.Population.IDs()
	names := w.residentNames(members)
	out := make([]update.Update, 0, len(members))
	for _, id := range members {
		out = append(out, update.Population(id, names))
	}
	return out
}

func (w *World) prototypeCounts(ids []entity.Identifier) map[string]int {
	counts := make(map[string]int)
	for _, id := range ids {
		if c, err := w.characters.Get(id); err == nil {
			counts[c.Prototype]++
		}
	}
	return counts
}

func (w *World) residentNames(ids []entity.Identifier) []string {
	return namesOf(func(id entity.Identifier) (*Character, bool) {
		c, err := w.characters.Get(id)
		return c, err == nil
	}, ids)
}

// namesOf resolves ids to character names, skipping any that get misses.
func namesOf(get func(entity.Identifier) (*Character, bool), ids []entity.Identifier) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if c, ok := get(id); ok {
			out = append(out, c.Name)
		}
	}
	return out
}
