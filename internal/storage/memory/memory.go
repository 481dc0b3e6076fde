// Package memory provides in-process repositories for standalone mode and
// tests. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cory-johannsen/textcamp/internal/auth"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/world"
)

// CharacterRepository keeps character snapshots in a map.
type CharacterRepository struct {
	mu    sync.RWMutex
	chars map[entity.Identifier]*world.Character
}

// NewCharacterRepository returns an empty repository.
func NewCharacterRepository() *CharacterRepository {
	return &CharacterRepository{chars: make(map[entity.Identifier]*world.Character)}
}

// LoadCharacter implements world.CharacterRepository.
func (r *CharacterRepository) LoadCharacter(_ context.Context, id entity.Identifier) (*world.Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chars[id]
	if !ok {
		return nil, fmt.Errorf("character %q: %w", id, world.ErrCharacterNotFound)
	}
	return c.Clone(), nil
}

// SaveCharacter implements world.CharacterRepository.
func (r *CharacterRepository) SaveCharacter(_ context.Context, c *world.Character) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chars[c.ID] = c.Clone()
	return nil
}

// Len returns the number of stored characters.
func (r *CharacterRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chars)
}

// AccountRepository keeps accounts in a map keyed by email.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]auth.Account
}

// NewAccountRepository returns an empty repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]auth.Account)}
}

// GetByEmail implements auth.AccountRepository.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[email]
	if !ok {
		return auth.Account{}, fmt.Errorf("account %q: %w", email, auth.ErrAccountNotFound)
	}
	return a, nil
}

// Put implements auth.AccountRepository.
func (r *AccountRepository) Put(_ context.Context, a auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.Email] = a
	return nil
}

// SessionRepository keeps sessions in a map keyed by token hash.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]auth.Session
}

// NewSessionRepository returns an empty repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]auth.Session)}
}

// Get implements auth.SessionRepository.
func (r *SessionRepository) Get(_ context.Context, tokenHash string) (auth.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[tokenHash]
	if !ok {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	return s, nil
}

// Put implements auth.SessionRepository.
func (r *SessionRepository) Put(_ context.Context, s auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.TokenHash] = s
	return nil
}

// Delete implements auth.SessionRepository. Deleting an unknown session is
// not an error.
func (r *SessionRepository) Delete(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, tokenHash)
	return nil
}
