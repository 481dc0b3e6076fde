package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/world"
)

// CharacterRepository stores each character as a JSONB document keyed by
// its identifier.
type CharacterRepository struct {
	db *pgxpool.Pool
}

// NewCharacterRepository creates a CharacterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewCharacterRepository(db *pgxpool.Pool) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// LoadCharacter implements world.CharacterRepository.
//
// Postcondition: Returns the character or an error wrapping world.ErrCharacterNotFound.
func (r *CharacterRepository) LoadCharacter(ctx context.Context, id entity.Identifier) (*world.Character, error) {
	var state []byte
	err := r.db.QueryRow(ctx,
		`SELECT state FROM characters WHERE id = $1`,
		id.String(),
	).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("character %q: %w", id, world.ErrCharacterNotFound)
		}
		return nil, fmt.Errorf("querying character: %w", err)
	}
	var c world.Character
	if err := json.Unmarshal(state, &c); err != nil {
		return nil, fmt.Errorf("decoding character %q: %w", id, err)
	}
	return &c, nil
}

// SaveCharacter implements world.CharacterRepository by upserting c.
//
// Precondition: c.ID must be non-empty.
func (r *CharacterRepository) SaveCharacter(ctx context.Context, c *world.Character) error {
	state, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding character %q: %w", c.ID, err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO characters (id, name, location, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, location = EXCLUDED.location,
		    state = EXCLUDED.state, updated_at = NOW()`,
		c.ID.String(), c.Name, c.Location.String(), state,
	)
	if err != nil {
		return fmt.Errorf("saving character %q: %w", c.ID, err)
	}
	return nil
}
