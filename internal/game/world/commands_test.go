package world

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/textcamp/internal/game/command"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
)

func TestCommand_UnknownVerb(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)

	out := tw.run(me, "dance wildly")
	require.Len(t, out, 1)
	assert.Equal(t, update.KindError, out[0].Payload.Type)
	assert.Equal(t, "... What?", out[0].Text())
	assert.Equal(t, me, out[0].To)
}

func TestCommand_MissingArgumentPrompts(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)

	for line, prompt := range map[string]string{
		"go":    "Which way?",
		"take":  "Take what?",
		"drop":  "Drop what?",
		"fight": "Fight who?",
	} {
		out := tw.run(me, line)
		require.Len(t, out, 1, line)
		assert.Equal(t, update.KindError, out[0].Payload.Type, line)
		assert.Equal(t, prompt, out[0].Text(), line)
	}
}

func TestLook_DescribesLocationAndExits(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)

	out := tw.run(me, "look")
	require.Len(t, out, 2)
	assert.Equal(t, update.KindSpace, out[0].Payload.Type)
	space := out[0].Payload.Body.(update.Markup)
	assert.Contains(t, space.Text, "A dusty crossroads.")
	assert.Contains(t, space.Text, "You see lantern here.")
	assert.Equal(t, []string{"north"}, out[1].Payload.Body)
}

func TestLook_Targets(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)
	tw.place(t, "Bob", 10, entity.Origin)

	out := tw.run(me, "look bob")
	require.Len(t, out, 1)
	assert.Equal(t, update.KindCharacter, out[0].Payload.Type)
	assert.Equal(t, "You see Bob.", out[0].Payload.Body.(update.Markup).Text)

	out = tw.run(me, "l lantern")
	require.Len(t, out, 1)
	assert.Equal(t, update.KindItem, out[0].Payload.Type)
	assert.Equal(t, "A brass lantern.", out[0].Payload.Body.(update.Markup).Text)

	out = tw.run(me, "look unicorn")
	require.Len(t, out, 1)
	assert.Equal(t, "You don't see that here.", out[0].Text())
}

func TestGo_FailureLeavesStateUnchanged(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)
	foe := tw.place(t, "Bob", 10, entity.Origin)
	tw.run(me, "fight bob")

	beforeMe := tw.mustCharacter(t, me)
	beforeOrigin := tw.mustLocation(t, entity.Origin)
	beforeHall := tw.mustLocation(t, hallID)

	for _, line := range []string{"go west", "go sideways", "south"} {
		out := tw.run(me, line)
		require.Len(t, out, 1, line)
		assert.Equal(t, update.KindError, out[0].Payload.Type, line)
		assert.Equal(t, "You can't go that way.", out[0].Text(), line)
	}

	assert.Equal(t, beforeMe, tw.mustCharacter(t, me))
	assert.Equal(t, beforeOrigin, tw.mustLocation(t, entity.Origin))
	assert.Equal(t, beforeHall, tw.mustLocation(t, hallID))
	assert.True(t, tw.mustCharacter(t, foe).HasEnemy(me))
}

func TestGo_MovesAndClearsEnemies(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)
	stay := tw.place(t, "Bob", 10, entity.Origin)
	there := tw.place(t, "Cat", 10, hallID)
	tw.run(me, "fight bob")

	out := tw.run(me, "n")

	c := tw.mustCharacter(t, me)
	assert.Equal(t, hallID, c.Location)
	assert.Empty(t, c.Enemies)
	assert.Equal(t, 1, tw.populationsContaining(t, me))
	assert.True(t, tw.mustLocation(t, hallID).Population.Contains(me))

	mine := update.For(out, me)
	require.Len(t, mine, 3)
	assert.Equal(t, update.KindSpace, mine[0].Payload.Type)
	assert.Equal(t, []string{"south"}, mine[1].Payload.Body)
	assert.ElementsMatch(t, []string{"Ann", "Cat"}, mine[2].Payload.Body)

	left := update.For(out, stay)
	require.Len(t, left, 1)
	assert.Equal(t, []string{"Bob"}, left[0].Payload.Body)

	joined := update.For(out, there)
	require.Len(t, joined, 1)
	assert.ElementsMatch(t, []string{"Ann", "Cat"}, joined[0].Payload.Body)
}

func TestTake_AbsentItemIsOneUserError(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, hallID)

	out := tw.run(me, "take lantern")
	require.Len(t, out, 1)
	assert.Equal(t, update.KindError, out[0].Payload.Type)
	assert.Equal(t, "You don't see that.", out[0].Text())
	assert.Equal(t, 0, tw.mustCharacter(t, me).Inventory.Len())
}

func TestTakeDrop_RoundTripKeepsIdentity(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)
	original, ok := tw.mustLocation(t, entity.Origin).Inventory.Find("lantern")
	require.True(t, ok)

	out := tw.run(me, "get LANTERN")
	require.NotEmpty(t, out)
	assert.Equal(t, "You took the lantern.", out[0].Text())
	assert.Equal(t, 0, tw.mustLocation(t, entity.Origin).Inventory.Len())
	held, ok := tw.mustCharacter(t, me).Inventory.Find("lantern")
	require.True(t, ok)
	assert.Equal(t, original.ID, held.ID)

	out = tw.run(me, "inv")
	require.Len(t, out, 1)
	assert.Equal(t, []string{"lantern"}, out[0].Payload.Body)

	tw.run(me, "n")
	out = tw.run(me, "drop lantern")
	require.NotEmpty(t, out)
	assert.Equal(t, "You dropped the lantern.", out[0].Text())
	dropped, ok := tw.mustLocation(t, hallID).Inventory.Find("lantern")
	require.True(t, ok)
	assert.Equal(t, original.ID, dropped.ID)
	assert.Equal(t, 0, tw.mustCharacter(t, me).Inventory.Len())

	out = tw.run(me, "drop lantern")
	require.Len(t, out, 1)
	assert.Equal(t, "You don't have that.", out[0].Text())
}

func TestFight_RegistersBothWays(t *testing.T) {
	tw := newTestWorld(t)
	a := tw.place(t, "Ann", 10, entity.Origin)
	b := tw.place(t, "Bob", 10, entity.Origin)

	out := tw.run(a, "attack Bob")
	require.Len(t, out, 2)
	assert.Equal(t, update.Combat(a, "You attack Bob!"), out[0])
	assert.Equal(t, update.Combat(b, "Ann attacks you!"), out[1])
	assert.True(t, tw.mustCharacter(t, a).HasEnemy(b))
	assert.True(t, tw.mustCharacter(t, b).HasEnemy(a))
	assert.Equal(t, 10, tw.mustCharacter(t, b).Vitality)

	out = tw.run(a, "fight nobody")
	require.Len(t, out, 1)
	assert.Equal(t, "You don't see them here.", out[0].Text())

	out = tw.run(a, "fight ann")
	require.Len(t, out, 1)
	assert.Equal(t, "You don't see them here.", out[0].Text())
}

func TestRefresh_SendsFullSnapshot(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)

	out := tw.run(me, "refresh")
	kinds := make([]update.Kind, 0, len(out))
	for _, u := range out {
		assert.Equal(t, me, u.To)
		kinds = append(kinds, u.Payload.Type)
	}
	assert.Equal(t, []update.Kind{
		update.KindCharacter, update.KindPopulation, update.KindSpace, update.KindExits,
		update.KindTime, update.KindInventory, update.KindHealth,
	}, kinds)
}

func TestTime_ReportsClock(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)

	out := tw.run(me, "time")
	require.Len(t, out, 1)
	assert.Equal(t, update.KindTime, out[0].Payload.Type)
	assert.Equal(t, tw.Clock().DateTime(), out[0].Payload.Body)
}

func TestSave_PersistsSnapshot(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)

	out := tw.run(me, "save")
	require.Len(t, out, 1)
	assert.Equal(t, "Saved.", out[0].Text())
	saved, ok := tw.repo.saved(me)
	require.True(t, ok)
	assert.Equal(t, "Ann", saved.Name)

	tw.repo.err = errors.New("disk full")
	out = tw.run(me, "save")
	require.Len(t, out, 1)
	assert.Equal(t, update.KindError, out[0].Payload.Type)
	assert.Equal(t, SystemMessage, out[0].Text())
}

func TestQuit_RemovesCharacter(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)
	other := tw.place(t, "Bob", 10, entity.Origin)

	out := tw.run(me, "logout")
	require.Len(t, out, 2)
	assert.Equal(t, update.Info(me, "Goodbye."), out[0])
	assert.Equal(t, update.Population(other, []string{"Bob"}), out[1])

	_, err := tw.Character(me)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Equal(t, 0, tw.populationsContaining(t, me))
	_, ok := tw.repo.saved(me)
	assert.True(t, ok)
}

func TestCommand_MissingActorIsSystemError(t *testing.T) {
	tw := newTestWorld(t)

	out := tw.run(entity.NewIdentifier(), "look")
	require.Len(t, out, 1)
	assert.Equal(t, update.KindError, out[0].Payload.Type)
	assert.Equal(t, SystemMessage, out[0].Text())
}

func TestCommand_ConcurrentTakeDropLosesNothing(t *testing.T) {
	tw := newTestWorld(t)
	for i := 0; i < 4; i++ {
		item, ok := tw.ItemPrototypes().Create("LANTERN", tw.random)
		require.True(t, ok)
		l := tw.mustLocation(t, entity.Origin)
		l.Inventory.Add(item)
		tw.AddLocation(l)
	}
	total := tw.mustLocation(t, entity.Origin).Inventory.Len()

	takers := make([]entity.Identifier, 8)
	for i := range takers {
		takers[i] = tw.place(t, "Taker", 10, entity.Origin)
	}

	var wg sync.WaitGroup
	for _, id := range takers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tw.run(id, "take lantern")
				tw.run(id, "drop lantern")
			}
		}()
	}
	wg.Wait()

	held := 0
	for _, id := range tw.characters.IDs() {
		held += tw.mustCharacter(t, id).Inventory.Len()
	}
	assert.Equal(t, total, held+tw.mustLocation(t, entity.Origin).Inventory.Len())
}

func TestCommand_ConcurrentFightsKeepEveryEnemy(t *testing.T) {
	tw := newTestWorld(t, func(o *Options) { o.CommitAttempts = 1000 })
	target := tw.place(t, "Boss", 200, entity.Origin)
	names := []string{"Ann", "Bea", "Cal", "Dee", "Eve", "Fay"}
	ids := make([]entity.Identifier, len(names))
	for i, n := range names {
		ids[i] = tw.place(t, n, 10, entity.Origin)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tw.Command(context.Background(), command.Command{From: id, Verb: command.VerbFight, Args: []string{"boss"}})
		}()
	}
	wg.Wait()

	boss := tw.mustCharacter(t, target)
	for _, id := range ids {
		assert.True(t, boss.HasEnemy(id))
	}
}

func TestCommand_VitalityStaysInBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tw := newTestWorld(t)
		a := tw.place(t, "Ann", uint8(rapid.IntRange(1, 20).Draw(rt, "staminaA")), entity.Origin)
		b := tw.place(t, "Bob", uint8(rapid.IntRange(1, 20).Draw(rt, "staminaB")), entity.Origin)
		lines := []string{"fight bob", "look", "n", "s", "take lantern", "drop lantern", "refresh"}
		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(rt, "action") {
			case 0:
				tw.run(a, rapid.SampledFrom(lines).Draw(rt, "line"))
			case 1:
				tw.Melee()
			default:
				tw.Tick()
			}
			for _, id := range []entity.Identifier{a, b} {
				c, err := tw.Character(id)
				if err != nil {
					continue
				}
				if c.Vitality < 0 || c.Vitality > c.MaxVitality() {
					rt.Fatalf("%s vitality %d outside [0, %d]", c.Name, c.Vitality, c.MaxVitality())
				}
			}
		}
	})
}
