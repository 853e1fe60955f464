package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeRegister(t *testing.T) {
	ex := NewExchange(DefaultExchangeOptions())
	assert.Equal(t, ExchangeBuilding, ex.State())

	a, err := ex.Register("A")
	require.NoError(t, err)
	assert.Equal(t, WorldID("A"), a.ID())

	_, err = ex.Register("B")
	require.NoError(t, err)

	_, err = ex.Register("A")
	assert.ErrorIs(t, err, ErrDuplicateWorld)

	_, err = ex.Register("")
	assert.ErrorIs(t, err, ErrInvalidWorldID)

	assert.Equal(t, []WorldID{"A", "B"}, ex.Worlds())
}

func TestExchangeFrozenAfterStart(t *testing.T) {
	ex := NewExchange(ExchangeOptions{})
	_, err := ex.Register("A")
	require.NoError(t, err)

	r, err := ex.Start(context.Background())
	require.NoError(t, err)
	defer func() {
		r.Stop()
		<-r.Done()
	}()

	assert.Equal(t, ExchangeSpawned, ex.State())
	assert.Equal(t, "spawned", ex.State().String())

	_, err = ex.Register("B")
	assert.ErrorIs(t, err, ErrExchangeStarted)

	_, err = ex.Start(context.Background())
	assert.ErrorIs(t, err, ErrExchangeStarted)

	assert.Equal(t, []WorldID{"A"}, ex.Worlds())
	assert.Equal(t, []WorldID{"A"}, r.Worlds())
	assert.Equal(t, 1, r.Stats().Worlds)
}

func TestExchangeWithoutWorlds(t *testing.T) {
	ex := NewExchange(ExchangeOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	r, err := ex.Start(ctx)
	require.NoError(t, err)

	cancel()
	require.NoError(t, r.Wait(context.Background()))
}
