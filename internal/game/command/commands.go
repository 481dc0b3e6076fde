// Package command provides the inbound phrase tokenizer, the closed set of
// verbs with their aliases, and per-verb argument validation.
package command

import (
	"fmt"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

// Verb is the canonical, uppercase name of an action.
type Verb string

// The closed set of verbs the world dispatches on. Any other verb is unknown.
const (
	VerbLook      Verb = "LOOK"
	VerbGo        Verb = "GO"
	VerbTake      Verb = "TAKE"
	VerbDrop      Verb = "DROP"
	VerbFight     Verb = "FIGHT"
	VerbInventory Verb = "INVENTORY"
	VerbRefresh   Verb = "REFRESH"
	VerbTime      Verb = "TIME"
	VerbSave      Verb = "SAVE"
	VerbQuit      Verb = "QUIT"
)

// Categories for organizing commands.
const (
	CategoryMovement = "movement"
	CategoryWorld    = "world"
	CategoryCombat   = "combat"
	CategorySystem   = "system"
)

// Command is a parsed request from a character.
type Command struct {
	From entity.Identifier
	Verb Verb
	Args []string
}

// Arg returns the i-th argument, or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Definition describes an invocable word.
type Definition struct {
	// Name is the canonical, uppercase word.
	Name string
	// Aliases are alternate words for this definition.
	Aliases []string
	// Help is the short help text.
	Help string
	// Category groups the definition.
	Category string
	// Verb is the action dispatched when the word is used.
	Verb Verb
	// Implied arguments are placed before any typed arguments, so that
	// NORTH behaves as GO NORTH.
	Implied []string
	// MinArgs is the number of arguments the verb requires.
	MinArgs int
	// Prompt is shown when fewer than MinArgs arguments were supplied.
	Prompt string
}

// ArgumentError reports a command missing a required argument.
type ArgumentError struct {
	Verb   Verb
	Prompt string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Verb, e.Prompt)
}

// Check validates args against the definition.
//
// Postcondition: returns nil or an *ArgumentError carrying the prompt.
func (d *Definition) Check(args []string) error {
	if len(args) < d.MinArgs {
		return &ArgumentError{Verb: d.Verb, Prompt: d.Prompt}
	}
	return nil
}

func move(name, alias string) Definition {
	return Definition{
		Name:     name,
		Aliases:  []string{alias},
		Help:     "Move " + name,
		Category: CategoryMovement,
		Verb:     VerbGo,
		Implied:  []string{name},
	}
}

// BuiltinCommands returns every built-in definition.
func BuiltinCommands() []Definition {
	return []Definition{
		// Movement shortcuts
		move("NORTH", "N"),
		move("SOUTH", "S"),
		move("EAST", "E"),
		move("WEST", "W"),
		move("UP", "U"),
		move("DOWN", "D"),
		{Name: "IN", Help: "Move in", Category: CategoryMovement, Verb: VerbGo, Implied: []string{"IN"}},
		{Name: "OUT", Help: "Move out", Category: CategoryMovement, Verb: VerbGo, Implied: []string{"OUT"}},

		{Name: "GO", Aliases: []string{"MOVE", "WALK"}, Help: "Move in a direction (go <direction>)", Category: CategoryMovement, Verb: VerbGo, MinArgs: 1, Prompt: "Which way?"},
		{Name: "LOOK", Aliases: []string{"L", "EXAMINE", "X"}, Help: "Look around, or at something (look [target])", Category: CategoryWorld, Verb: VerbLook},
		{Name: "TAKE", Aliases: []string{"GET"}, Help: "Pick up an item (take <item>)", Category: CategoryWorld, Verb: VerbTake, MinArgs: 1, Prompt: "Take what?"},
		{Name: "DROP", Help: "Drop an item (drop <item>)", Category: CategoryWorld, Verb: VerbDrop, MinArgs: 1, Prompt: "Drop what?"},
		{Name: "INVENTORY", Aliases: []string{"INV", "I"}, Help: "List what you carry", Category: CategoryWorld, Verb: VerbInventory},
		{Name: "FIGHT", Aliases: []string{"ATTACK", "KILL", "K"}, Help: "Attack someone (fight <name>)", Category: CategoryCombat, Verb: VerbFight, MinArgs: 1, Prompt: "Fight who?"},
		{Name: "REFRESH", Help: "Resend your full state", Category: CategorySystem, Verb: VerbRefresh},
		{Name: "TIME", Help: "Show the world time", Category: CategorySystem, Verb: VerbTime},
		{Name: "SAVE", Help: "Save your character", Category: CategorySystem, Verb: VerbSave},
		{Name: "QUIT", Aliases: []string{"EXIT", "LOGOUT"}, Help: "Leave the world", Category: CategorySystem, Verb: VerbQuit},
	}
}

// IsMovementCommand reports whether the word is a direction shortcut.
func IsMovementCommand(name string) bool {
	d, ok := DefaultRegistry().Resolve(name)
	return ok && d.Category == CategoryMovement && d.Verb == VerbGo && len(d.Implied) > 0
}
