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

// ErrUnknownCharacter is returned when an account or session names a
// character that was never saved.
var ErrUnknownCharacter = errors.New("unknown character")

// AccountRepository provides account persistence operations.
type AccountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository creates an AccountRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByEmail implements auth.AccountRepository.
//
// Precondition: email must be normalized.
// Postcondition: Returns the Account or an error wrapping auth.ErrAccountNotFound.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (auth.Account, error) {
	var (
		acct auth.Account
		id   string
	)
	err := r.db.QueryRow(ctx,
		`SELECT email, character_id, created_at FROM accounts WHERE email = $1`,
		email,
	).Scan(&acct.Email, &id, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Account{}, fmt.Errorf("account %q: %w", email, auth.ErrAccountNotFound)
		}
		return auth.Account{}, fmt.Errorf("querying account: %w", err)
	}
	acct.Character = entity.Identifier(id)
	return acct, nil
}

// Put implements auth.AccountRepository. An existing account for the same
// email is rebound to a.Character.
//
// Postcondition: Returns ErrUnknownCharacter if a.Character was never saved.
func (r *AccountRepository) Put(ctx context.Context, a auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (email, character_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET character_id = EXCLUDED.character_id`,
		a.Email, a.Character.String(), a.CreatedAt,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("account %q: %w", a.Email, ErrUnknownCharacter)
		}
		return fmt.Errorf("saving account: %w", err)
	}
	return nil
}
