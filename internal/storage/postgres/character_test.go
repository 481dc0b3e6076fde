package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/textcamp/internal/auth"
	"github.com/cory-johannsen/textcamp/internal/game/entity"
	"github.com/cory-johannsen/textcamp/internal/game/update"
	"github.com/cory-johannsen/textcamp/internal/game/world"
	"github.com/cory-johannsen/textcamp/internal/storage/postgres"
	"github.com/cory-johannsen/textcamp/internal/testutil"
)

type repos struct {
	pool     *postgres.Pool
	chars    *postgres.CharacterRepository
	accounts *postgres.AccountRepository
	sessions *postgres.SessionRepository
}

func setupRepos(t *testing.T) repos {
	t.Helper()
	pool := testutil.StartDatabase(t).Pool
	db := pool.DB()
	return repos{
		pool:     pool,
		chars:    postgres.NewCharacterRepository(db),
		accounts: postgres.NewAccountRepository(db),
		sessions: postgres.NewSessionRepository(db),
	}
}

func makeTestCharacter(id, name string) *world.Character {
	c := &world.Character{
		ID:          entity.Identifier(id),
		Name:        name,
		Prototype:   "HERO",
		Description: update.Markup{Text: "A hero."},
		Location:    "HALL",
		Attributes:  world.Attributes{Stamina: 20, Strength: 50},
		Player:      true,
	}
	c.SetVitality(12)
	c.Inventory.Add(world.Item{ID: "it-1", Prototype: "LANTERN", Name: "lantern"})
	c.AddEnemy("rat-1")
	return c
}

func TestPostgres(t *testing.T) {
	r := setupRepos(t)
	ctx := context.Background()

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, r.pool.Health(ctx, time.Second))
	})

	t.Run("character round trip", func(t *testing.T) {
		c := makeTestCharacter("c-1", "Zara")
		require.NoError(t, r.chars.SaveCharacter(ctx, c))

		got, err := r.chars.LoadCharacter(ctx, "c-1")
		require.NoError(t, err)
		assert.Equal(t, "Zara", got.Name)
		assert.Equal(t, 12, got.Vitality)
		assert.Equal(t, entity.Identifier("HALL"), got.Location)
		assert.Equal(t, uint8(50), got.Attributes.Strength)
		require.Len(t, got.Inventory.Items, 1)
		assert.Equal(t, entity.Identifier("it-1"), got.Inventory.Items[0].ID)
		assert.True(t, got.HasEnemy("rat-1"))
	})

	t.Run("save upserts", func(t *testing.T) {
		c := makeTestCharacter("c-2", "Yuri")
		require.NoError(t, r.chars.SaveCharacter(ctx, c))
		c.Location = "ORIGIN"
		c.SetVitality(20)
		require.NoError(t, r.chars.SaveCharacter(ctx, c))

		got, err := r.chars.LoadCharacter(ctx, "c-2")
		require.NoError(t, err)
		assert.Equal(t, entity.Identifier("ORIGIN"), got.Location)
		assert.Equal(t, 20, got.Vitality)
	})

	t.Run("missing character", func(t *testing.T) {
		_, err := r.chars.LoadCharacter(ctx, "nobody")
		assert.ErrorIs(t, err, world.ErrCharacterNotFound)
	})

	t.Run("accounts", func(t *testing.T) {
		_, err := r.accounts.GetByEmail(ctx, "zara@example.com")
		assert.ErrorIs(t, err, auth.ErrAccountNotFound)

		require.NoError(t, r.accounts.Put(ctx, auth.Account{
			Email: "zara@example.com", Character: "c-1", CreatedAt: time.Now(),
		}))
		acct, err := r.accounts.GetByEmail(ctx, "zara@example.com")
		require.NoError(t, err)
		assert.Equal(t, entity.Identifier("c-1"), acct.Character)

		require.NoError(t, r.accounts.Put(ctx, auth.Account{
			Email: "zara@example.com", Character: "c-2", CreatedAt: time.Now(),
		}))
		acct, err = r.accounts.GetByEmail(ctx, "zara@example.com")
		require.NoError(t, err)
		assert.Equal(t, entity.Identifier("c-2"), acct.Character)

		err = r.accounts.Put(ctx, auth.Account{Email: "ghost@example.com", Character: "ghost", CreatedAt: time.Now()})
		assert.ErrorIs(t, err, postgres.ErrUnknownCharacter)
	})

	t.Run("sessions", func(t *testing.T) {
		hash := auth.HashToken("token")
		require.NoError(t, r.sessions.Put(ctx, auth.Session{TokenHash: hash, Character: "c-1", CreatedAt: time.Now()}))

		s, err := r.sessions.Get(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, entity.Identifier("c-1"), s.Character)

		require.NoError(t, r.sessions.Delete(ctx, hash))
		require.NoError(t, r.sessions.Delete(ctx, hash))
		_, err = r.sessions.Get(ctx, hash)
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)

		err = r.sessions.Put(ctx, auth.Session{TokenHash: "x", Character: "ghost", CreatedAt: time.Now()})
		assert.ErrorIs(t, err, postgres.ErrUnknownCharacter)
	})

	t.Run("vitality survives persistence", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			stamina := rapid.Uint8Range(1, 255).Draw(rt, "stamina")
			v := rapid.IntRange(-10, 300).Draw(rt, "vitality")
			id := fmt.Sprintf("prop-%d-%d", stamina, v)
			c := &world.Character{ID: entity.Identifier(id), Name: id, Location: "ORIGIN", Attributes: world.Attributes{Stamina: stamina}}
			c.SetVitality(v)
			if err := r.chars.SaveCharacter(ctx, c); err != nil {
				rt.Fatalf("save: %v", err)
			}
			got, err := r.chars.LoadCharacter(ctx, c.ID)
			if err != nil {
				rt.Fatalf("load: %v", err)
			}
			if got.Vitality != c.Vitality || got.Vitality < 0 || got.Vitality > got.MaxVitality() {
				rt.Fatalf("vitality %d after round trip, saved %d (max %d)", got.Vitality, c.Vitality, got.MaxVitality())
			}
		})
	})
}
