package world

import (
	"context"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

// CharacterRepository persists characters between sessions.
type CharacterRepository interface {
	// LoadCharacter returns the stored character or an error wrapping
	// ErrCharacterNotFound.
	LoadCharacter(ctx context.Context, id entity.Identifier) (*Character, error)
	// SaveCharacter upserts c.
	SaveCharacter(ctx context.Context, c *Character) error
}

// Authenticator issues and checks credentials.
type Authenticator interface {
	// StartAuth begins a magic-link login for email.
	StartAuth(ctx context.Context, email string) error
	// ConsumeOTP redeems a one-time token, returning the email it was issued for.
	ConsumeOTP(ctx context.Context, token string) (email string, ok bool)
	// Account returns the character bound to email.
	Account(ctx context.Context, email string) (id entity.Identifier, found bool, err error)
	// CreateAccount binds email to a character.
	CreateAccount(ctx context.Context, email string, id entity.Identifier) error
	// StartSession issues a session token for a character.
	StartSession(ctx context.Context, id entity.Identifier) (token string, err error)
	// ValidSession resolves a session token to its character.
	ValidSession(ctx context.Context, token string) (id entity.Identifier, ok bool)
}
