package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/textcamp/internal/auth"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

// SessionRepository stores session token hashes. Plain tokens never reach
// the database.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a SessionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get implements auth.SessionRepository.
//
// Postcondition: Returns the Session or an error wrapping auth.ErrSessionNotFound.
func (r *SessionRepository) Get(ctx context.Context, tokenHash string) (auth.Session, error) {
	var (
		s  auth.Session
		id string
	)
	err := r.db.QueryRow(ctx,
		`SELECT token_hash, character_id, created_at FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&s.TokenHash, &id, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("querying session: %w", err)
	}
	s.Character = entity.Identifier(id)
	return s, nil
}

// Put implements auth.SessionRepository.
//
// Postcondition: Returns ErrUnknownCharacter if s.Character was never saved.
func (r *SessionRepository) Put(ctx context.Context, s auth.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (token_hash, character_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET character_id = EXCLUDED.character_id`,
		s.TokenHash, s.Character.String(), s.CreatedAt,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("session: %w", ErrUnknownCharacter)
		}
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Delete implements auth.SessionRepository. Deleting an unknown session is
// not an error.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
