package command

import (
	"fmt"
	"strings"
	"sync"
)

// Registry maps words and aliases to Definitions.
type Registry struct {
	commands map[string]*Definition // canonical name → definition
	aliases  map[string]string      // alias → canonical name
	verbs    map[Verb]*Definition   // verb → its canonical definition
}

// NewRegistry creates a Registry populated with the given definitions.
//
// Precondition: No two definitions may share a canonical name or alias.
// Postcondition: Returns a Registry or an error on name/alias collisions.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{
		commands: make(map[string]*Definition, len(defs)),
		aliases:  make(map[string]string),
		verbs:    make(map[Verb]*Definition),
	}

	for i := range defs {
		def := &defs[i]
		name := strings.ToUpper(def.Name)
		if _, exists := r.commands[name]; exists {
			return nil, fmt.Errorf("duplicate command name: %q", name)
		}
		if _, exists := r.aliases[name]; exists {
			return nil, fmt.Errorf("command name %q conflicts with an existing alias", name)
		}
		r.commands[name] = def
		if name == string(def.Verb) {
			r.verbs[def.Verb] = def
		}

		for _, alias := range def.Aliases {
			alias = strings.ToUpper(alias)
			if _, exists := r.commands[alias]; exists {
				return nil, fmt.Errorf("alias %q conflicts with command name %q", alias, alias)
			}
			if existing, exists := r.aliases[alias]; exists {
				return nil, fmt.Errorf("duplicate alias %q: used by %q and %q", alias, existing, name)
			}
			r.aliases[alias] = name
		}
	}

	return r, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(BuiltinCommands())
	if err != nil {
		panic(fmt.Sprintf("building default registry: %v", err))
	}
	return r
})

// DefaultRegistry returns the shared Registry of built-in definitions.
//
// Postcondition: Returns a Registry with all built-in definitions registered.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Resolve looks up a definition by name or alias, case-insensitively.
//
// Postcondition: Returns (definition, true) if found, or (nil, false).
func (r *Registry) Resolve(input string) (*Definition, bool) {
	input = strings.ToUpper(input)
	if def, ok := r.commands[input]; ok {
		return def, true
	}
	if canonical, ok := r.aliases[input]; ok {
		return r.commands[canonical], true
	}
	return nil, false
}

// ForVerb returns the canonical definition of verb.
func (r *Registry) ForVerb(verb Verb) (*Definition, bool) {
	def, ok := r.verbs[verb]
	return def, ok
}

// Check validates the arguments of cmd against its verb's definition.
// Unknown verbs pass; the dispatcher rejects them.
func (r *Registry) Check(cmd Command) error {
	def, ok := r.verbs[cmd.Verb]
	if !ok {
		return nil
	}
	return def.Check(cmd.Args)
}

// Commands returns all registered definitions in no particular order.
func (r *Registry) Commands() []*Definition {
	result := make([]*Definition, 0, len(r.commands))
	for _, def := range r.commands {
		result = append(result, def)
	}
	return result
}

// CommandsByCategory returns definitions grouped by category.
func (r *Registry) CommandsByCategory() map[string][]*Definition {
	categories := make(map[string][]*Definition)
	for _, def := range r.commands {
		categories[def.Category] = append(categories[def.Category], def)
	}
	return categories
}
