package world

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/textcamp/internal/game/entity"
)

func TestAuthenticateOTP_NewEmailCreatesCharacter(t *testing.T) {
	tw := newTestWorld(t)
	ctx := context.Background()
	require.NoError(t, tw.StartAuth(ctx, "ann@example.com"))

	token, err := tw.AuthenticateOTP(ctx, "otp-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := tw.AuthenticateSession(ctx, token)
	require.NoError(t, err)
	c := tw.mustCharacter(t, id)
	assert.True(t, c.Player)
	assert.Equal(t, StarterPrototype, c.Prototype)
	assert.Equal(t, "Hero7", c.Name)
	assert.Equal(t, entity.Origin, c.Location)
	assert.Equal(t, 1, tw.populationsContaining(t, id))
	assert.True(t, tw.mustLocation(t, entity.Origin).Population.Contains(id))

	_, saved := tw.repo.saved(id)
	assert.True(t, saved)
	bound, found, err := tw.auth.Account(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, bound)
}

func TestAuthenticateOTP_RejectsUnknownAndReusedTokens(t *testing.T) {
	tw := newTestWorld(t)
	ctx := context.Background()

	_, err := tw.AuthenticateOTP(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, tw.StartAuth(ctx, "ann@example.com"))
	_, err = tw.AuthenticateOTP(ctx, "otp-1")
	require.NoError(t, err)
	_, err = tw.AuthenticateOTP(ctx, "otp-1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateOTP_KnownEmailResumesCharacter(t *testing.T) {
	tw := newTestWorld(t)
	ctx := context.Background()
	require.NoError(t, tw.StartAuth(ctx, "ann@example.com"))
	first, err := tw.AuthenticateOTP(ctx, "otp-1")
	require.NoError(t, err)
	id, err := tw.AuthenticateSession(ctx, first)
	require.NoError(t, err)

	require.NoError(t, tw.StartAuth(ctx, "ann@example.com"))
	second, err := tw.AuthenticateOTP(ctx, "otp-3")
	require.NoError(t, err)
	again, err := tw.AuthenticateSession(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, id, again)
	chars, _ := tw.Counts()
	assert.Equal(t, 1, chars)
	assert.Equal(t, 1, tw.populationsContaining(t, id))
}

func TestAuthenticateSession_Invalid(t *testing.T) {
	tw := newTestWorld(t)
	_, err := tw.AuthenticateSession(context.Background(), "forged")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthenticateSession_ReloadsAfterQuit(t *testing.T) {
	tw := newTestWorld(t)
	ctx := context.Background()
	require.NoError(t, tw.StartAuth(ctx, "ann@example.com"))
	token, err := tw.AuthenticateOTP(ctx, "otp-1")
	require.NoError(t, err)
	id, err := tw.AuthenticateSession(ctx, token)
	require.NoError(t, err)

	tw.run(id, "n")
	tw.run(id, "quit")
	_, err = tw.Character(id)
	require.ErrorIs(t, err, entity.ErrNotFound)

	again, err := tw.AuthenticateSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	c := tw.mustCharacter(t, id)
	assert.Equal(t, hallID, c.Location)
	assert.True(t, tw.mustLocation(t, hallID).Population.Contains(id))
}

func TestAuthenticateSession_RevivesFallenCharacter(t *testing.T) {
	tw := newTestWorld(t)
	ctx := context.Background()
	fallen := &Character{
		ID:         entity.NewIdentifier(),
		Name:       "Ann",
		Location:   hallID,
		Attributes: Attributes{Stamina: 10},
		Enemies:    []entity.Identifier{"someone"},
		Player:     true,
	}
	require.NoError(t, tw.repo.SaveCharacter(ctx, fallen))
	token, err := tw.auth.StartSession(ctx, fallen.ID)
	require.NoError(t, err)

	id, err := tw.AuthenticateSession(ctx, token)
	require.NoError(t, err)
	c := tw.mustCharacter(t, id)
	assert.Equal(t, 10, c.Vitality)
	assert.Equal(t, entity.Origin, c.Location)
	assert.Empty(t, c.Enemies)
}

func TestAuthenticateSession_UnknownLocationFallsBackToOrigin(t *testing.T) {
	tw := newTestWorld(t)
	ctx := context.Background()
	lost := &Character{
		ID:         entity.NewIdentifier(),
		Name:       "Ann",
		Location:   "NOWHERE",
		Attributes: Attributes{Stamina: 10},
		Vitality:   4,
		Player:     true,
	}
	require.NoError(t, tw.repo.SaveCharacter(ctx, lost))
	token, err := tw.auth.StartSession(ctx, lost.ID)
	require.NoError(t, err)

	id, err := tw.AuthenticateSession(ctx, token)
	require.NoError(t, err)
	c := tw.mustCharacter(t, id)
	assert.Equal(t, entity.Origin, c.Location)
	assert.Equal(t, 4, c.Vitality)
	assert.True(t, tw.mustLocation(t, entity.Origin).Population.Contains(id))
}

func TestDisconnect_SavesAndStaysResident(t *testing.T) {
	tw := newTestWorld(t)
	me := tw.place(t, "Ann", 10, entity.Origin)

	tw.Disconnect(context.Background(), me)
	saved, ok := tw.repo.saved(me)
	require.True(t, ok)
	assert.Equal(t, "Ann", saved.Name)
	tw.mustCharacter(t, me)

	tw.Disconnect(context.Background(), entity.NewIdentifier())
}

func TestValidate_MissingOriginIsFatal(t *testing.T) {
	tw := newTestWorld(t)
	tw.locations.Remove(entity.Origin)

	err := tw.Validate()
	require.Error(t, err)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Contains(t, err.Error(), "ORIGIN")
	assert.Contains(t, err.Error(), "unknown location")
}

func TestMustValidate_CallsFatalHook(t *testing.T) {
	var fatal string
	tw := newTestWorld(t, func(o *Options) {
		o.Fatal = func(msg string, _ ...zap.Field) { fatal = msg }
	})
	tw.mobs = NewPrototypes[MobPrototype, *Character]()

	tw.MustValidate()
	assert.Equal(t, "world failed validation", fatal)
}
