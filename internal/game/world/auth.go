package world

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

// StartAuth begins a magic-link login for email.
func (w *World) StartAuth(ctx context.Context, email string) error {
	if err := w.auth.StartAuth(ctx, email); err != nil {
		return systemErrorf("starting auth: %w", err)
	}
	return nil
}

// AuthenticateOTP redeems a one-time token and opens a session.
//
// A known email resumes its character; an unknown one gets a new character
// bound to it.
//
// Postcondition: On success the character is resident and present in
// exactly one population, and the returned session token resolves to it.
func (w *World) AuthenticateOTP(ctx context.Context, otp string) (string, error) {
	email, ok := w.auth.ConsumeOTP(ctx, otp)
	if !ok {
		return "", ErrUnauthenticated
	}
	id, found, err := w.auth.Account(ctx, email)
	if err != nil {
		return "", systemErrorf("looking up account: %w", err)
	}
	if found {
		if err := w.materialize(ctx, id); err != nil {
			return "", err
		}
	} else {
		id, err = w.CreateCharacter(ctx)
		if err != nil {
			return "", err
		}
		if err := w.auth.CreateAccount(ctx, email, id); err != nil {
			w.logger.Error("creating account",
				zap.String("character", id.String()),
				zap.Error(err),
			)
		} else {
			w.logger.Info("created account", zap.String("character", id.String()))
		}
	}
	token, err := w.auth.StartSession(ctx, id)
	if err != nil {
		return "", systemErrorf("starting session: %w", err)
	}
	return token, nil
}

// AuthenticateSession resolves a session token to its character, loading
// the character into the world if it is not resident.
func (w *World) AuthenticateSession(ctx context.Context, token string) (entity.Identifier, error) {
	id, ok := w.auth.ValidSession(ctx, token)
	if !ok {
		return "", ErrUnauthenticated
	}
	if err := w.materialize(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// CreateCharacter stamps a new player character from the starter prototype,
// persists it, and places it at the origin.
func (w *World) CreateCharacter(ctx context.Context) (entity.Identifier, error) {
	c, ok := w.mobs.Create(StarterPrototype, w.random)
	if !ok {
		return "", fatalError(fmt.Errorf("missing %s prototype", StarterPrototype))
	}
	c.Player = true
	c.Location = entity.Origin
	if err := w.repo.SaveCharacter(ctx, c); err != nil {
		return "", systemErrorf("saving new character: %w", err)
	}
	err := w.transact(ctx, func(tx *Tx) error {
		origin, err := tx.Location(entity.Origin)
		if err != nil {
			return fatalError(err)
		}
		origin.Population.Add(c.ID)
		tx.PutLocation(origin)
		tx.PutCharacter(c)
		return nil
	})
	if err != nil {
		return "", err
	}
	w.logger.Info("created character",
		zap.String("character", c.ID.String()),
		zap.String("name", c.Name),
	)
	return c.ID, nil
}

// materialize makes id resident, loading it from the repository when
// needed, and ensures it is a member of its location's population.
//
// A resident character always wins over the stored copy. A stored
// character without vitality comes back at full strength at the origin.
func (w *World) materialize(ctx context.Context, id entity.Identifier) error {
	var loaded *Character
	if !w.characters.Contains(id) {
		c, err := w.repo.LoadCharacter(ctx, id)
		if err != nil {
			return systemErrorf("loading character %s: %w", id, err)
		}
		if !c.IsAlive() {
			c.SetVitality(c.MaxVitality())
			c.Location = entity.Origin
		}
		c.ClearEnemies()
		loaded = c
	}
	return w.transact(ctx, func(tx *Tx) error {
		c, err := tx.Character(id)
		switch {
		case err == nil:
		case errors.Is(err, entity.ErrNotFound) && loaded != nil:
			c = loaded.Clone()
		default:
			return systemError(err)
		}
		here, err := tx.Location(c.Location)
		if err != nil {
			if here, err = tx.Location(entity.Origin); err != nil {
				return fatalError(err)
			}
			c.Location = here.ID
		}
		here.Population.Add(c.ID)
		tx.PutLocation(here)
		tx.PutCharacter(c)
		return nil
	})
}

// Disconnect persists the character behind a closed connection. The
// character stays in the world.
func (w *World) Disconnect(ctx context.Context, id entity.Identifier) {
	c, err := w.characters.Get(id)
	if err != nil {
		w.logger.Debug("disconnect of non-resident character", zap.String("character", id.String()))
		return
	}
	if err := w.repo.SaveCharacter(ctx, c); err != nil {
		w.logger.Error("saving character on disconnect",
			zap.String("character", id.String()),
			zap.Error(err),
		)
	}
}
