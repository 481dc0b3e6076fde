package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.NotNil(t, r)
	assert.Greater(t, len(r.Commands()), 0)
	assert.Same(t, r, DefaultRegistry())
}

func TestResolve_CanonicalName(t *testing.T) {
	r := DefaultRegistry()

	def, ok := r.Resolve("north")
	assert.True(t, ok)
	assert.Equal(t, "NORTH", def.Name)
	assert.Equal(t, VerbGo, def.Verb)
}

func TestResolve_Alias(t *testing.T) {
	r := DefaultRegistry()

	def, ok := r.Resolve("n")
	assert.True(t, ok)
	assert.Equal(t, "NORTH", def.Name)
}

func TestResolve_NotFound(t *testing.T) {
	r := DefaultRegistry()

	_, ok := r.Resolve("teleport")
	assert.False(t, ok)
}

func TestResolve_AllVerbs(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		input string
		verb  Verb
	}{
		{"look", VerbLook},
		{"l", VerbLook},
		{"go", VerbGo},
		{"take", VerbTake},
		{"get", VerbTake},
		{"drop", VerbDrop},
		{"fight", VerbFight},
		{"kill", VerbFight},
		{"i", VerbInventory},
		{"refresh", VerbRefresh},
		{"time", VerbTime},
		{"save", VerbSave},
		{"quit", VerbQuit},
		{"in", VerbGo},
		{"out", VerbGo},
	}

	for _, tt := range tests {
		def, ok := r.Resolve(tt.input)
		require.True(t, ok, "input %q not found", tt.input)
		assert.Equal(t, tt.verb, def.Verb, "input %q wrong verb", tt.input)
	}
}

func TestCheck_MissingArgumentPrompts(t *testing.T) {
	r := DefaultRegistry()
	prompts := map[Verb]string{
		VerbGo:    "Which way?",
		VerbTake:  "Take what?",
		VerbDrop:  "Drop what?",
		VerbFight: "Fight who?",
	}
	for verb, prompt := range prompts {
		err := r.Check(Command{Verb: verb})
		var argErr *ArgumentError
		require.True(t, errors.As(err, &argErr), "verb %s", verb)
		assert.Equal(t, prompt, argErr.Prompt)
		assert.NoError(t, r.Check(Command{Verb: verb, Args: []string{"x"}}))
	}
	assert.NoError(t, r.Check(Command{Verb: VerbLook}))
	assert.NoError(t, r.Check(Command{Verb: "DANCE"}))
}

func TestNewRegistry_DuplicateName(t *testing.T) {
	defs := []Definition{
		{Name: "TEST", Verb: "A"},
		{Name: "test", Verb: "B"},
	}
	_, err := NewRegistry(defs)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate command name")
}

func TestNewRegistry_DuplicateAlias(t *testing.T) {
	defs := []Definition{
		{Name: "TEST1", Aliases: []string{"t"}, Verb: "A"},
		{Name: "TEST2", Aliases: []string{"T"}, Verb: "B"},
	}
	_, err := NewRegistry(defs)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate alias")
}

func TestCommandsByCategory(t *testing.T) {
	r := DefaultRegistry()
	cats := r.CommandsByCategory()

	assert.Contains(t, cats, CategoryMovement)
	assert.Contains(t, cats, CategoryWorld)
	assert.Contains(t, cats, CategoryCombat)
	assert.Contains(t, cats, CategorySystem)
	assert.Len(t, cats[CategoryMovement], 9)
}

func TestPropertyAllAliasesResolveToCanonical(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := DefaultRegistry()
		defs := r.Commands()
		idx := rapid.IntRange(0, len(defs)-1).Draw(t, "def_idx")
		def := defs[idx]

		resolved, ok := r.Resolve(def.Name)
		if !ok {
			t.Fatalf("canonical name %q did not resolve", def.Name)
		}
		if resolved.Name != def.Name {
			t.Fatalf("canonical name %q resolved to %q", def.Name, resolved.Name)
		}

		for _, alias := range def.Aliases {
			aliasResolved, ok := r.Resolve(alias)
			if !ok {
				t.Fatalf("alias %q did not resolve", alias)
			}
			if aliasResolved.Name != def.Name {
				t.Fatalf("alias %q resolved to %q, expected %q", alias, aliasResolved.Name, def.Name)
			}
		}
	})
}

func TestIsMovementCommand(t *testing.T) {
	assert.True(t, IsMovementCommand("north"))
	assert.True(t, IsMovementCommand("S"))
	assert.True(t, IsMovementCommand("up"))
	assert.True(t, IsMovementCommand("out"))
	assert.False(t, IsMovementCommand("go"))
	assert.False(t, IsMovementCommand("look"))
}
