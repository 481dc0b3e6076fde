// Package entity provides identifiers and the versioned, concurrency-safe
// stores that hold every live character and location of the world.
package entity

import (
	"github.com/google/uuid"
)

// Identifier names an entity. Equality and ordering are by value.
type Identifier string

// Origin is the reserved identifier of the starting location.
const Origin Identifier = "ORIGIN"

// NewIdentifier returns a fresh random identifier.
//
// Postcondition: the result is non-empty and unique with overwhelming probability.
func NewIdentifier() Identifier {
	return Identifier(uuid.NewString())
}

// String returns the raw identifier value.
func (id Identifier) String() string { return string(id) }

// IsZero reports whether id is the empty identifier.
func (id Identifier) IsZero() bool { return id == "" }
