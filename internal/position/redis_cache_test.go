package position_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/tripwise/internal/position"
)

func newRedisCache(t *testing.T) (*position.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := position.NewRedisClient(context.Background(), position.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return position.NewRedisCache(client, 10*time.Minute), mr
}

func TestRedisCache_Position(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)

	_, err := c.Get(ctx, "trv_1")
	assert.ErrorIs(t, err, position.ErrNoPosition)

	speed := 4.2
	recorded := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, c.Set(ctx, "trv_1", position.Position{Lat: 6.5, Lon: 3.3, Speed: &speed, RecordedAt: recorded}))

	got, err := c.Get(ctx, "trv_1")
	require.NoError(t, err)
	assert.Equal(t, 6.5, got.Lat)
	assert.Equal(t, 3.3, got.Lon)
	require.NotNil(t, got.Speed)
	assert.Equal(t, 4.2, *got.Speed)
	assert.True(t, recorded.Equal(got.RecordedAt))

	require.NoError(t, c.Clear(ctx, "trv_1"))
	_, err = c.Get(ctx, "trv_1")
	assert.ErrorIs(t, err, position.ErrNoPosition)
}

func TestRedisCache_PositionTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, c.Set(ctx, "trv_1", position.Position{Lat: 6.5, Lon: 3.3}))
	assert.Equal(t, 10*time.Minute, mr.TTL("tripwise:position:trv_1"))

	mr.FastForward(11 * time.Minute)

	_, err := c.Get(ctx, "trv_1")
	assert.ErrorIs(t, err, position.ErrNoPosition)
}

func TestRedisCache_ActiveJourney(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	_, err := c.GetActiveJourney(ctx, "trv_1")
	assert.ErrorIs(t, err, position.ErrNoActivePointer)

	require.NoError(t, c.SetActiveJourney(ctx, "trv_1", "jny_1"))
	assert.Equal(t, time.Duration(0), mr.TTL("tripwise:active-journey:trv_1"))

	id, err := c.GetActiveJourney(ctx, "trv_1")
	require.NoError(t, err)
	assert.Equal(t, "jny_1", id)

	require.NoError(t, c.ClearActiveJourney(ctx, "trv_1"))
	_, err = c.GetActiveJourney(ctx, "trv_1")
	assert.ErrorIs(t, err, position.ErrNoActivePointer)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := position.NewRedisClient(context.Background(), position.RedisConfig{Address: addr})
	assert.Error(t, err)
}
