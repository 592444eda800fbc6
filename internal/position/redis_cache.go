package position

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `env:"ADDRESS"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisCache is a Cache backed by Redis through gocache.
// Values are stored as JSON strings.
type RedisCache struct {
	cache *cache.Cache[string]
	ttl   time.Duration
}

// NewRedisCache creates a Redis position cache.
// A non-positive ttl uses DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &RedisCache{
		cache: cache.New[string](redisStore),
		ttl:   ttl,
	}
}

func positionKey(travelerID string) string {
	return "tripwise:position:" + travelerID
}

func activeKey(travelerID string) string {
	return "tripwise:active-journey:" + travelerID
}

// Get returns the traveler's latest position.
func (c *RedisCache) Get(ctx context.Context, travelerID string) (*Position, error) {
	value, err := c.cache.Get(ctx, positionKey(travelerID))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoPosition
		}
		return nil, fmt.Errorf("get position: %w", err)
	}

	var pos Position
	if err := json.Unmarshal([]byte(value), &pos); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	return &pos, nil
}

// Set replaces the traveler's latest position.
func (c *RedisCache) Set(ctx context.Context, travelerID string, pos Position) error {
	b, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("encode position: %w", err)
	}
	if err := c.cache.Set(ctx, positionKey(travelerID), string(b), store.WithExpiration(c.ttl)); err != nil {
		return fmt.Errorf("set position: %w", err)
	}
	return nil
}

// Clear removes the traveler's position.
func (c *RedisCache) Clear(ctx context.Context, travelerID string) error {
	if err := c.cache.Delete(ctx, positionKey(travelerID)); err != nil {
		return fmt.Errorf("clear position: %w", err)
	}
	return nil
}

// SetActiveJourney records the journey the traveler is on.
// The pointer does not expire.
func (c *RedisCache) SetActiveJourney(ctx context.Context, travelerID, journeyID string) error {
	if err := c.cache.Set(ctx, activeKey(travelerID), journeyID, store.WithExpiration(0)); err != nil {
		return fmt.Errorf("set active journey: %w", err)
	}
	return nil
}

// GetActiveJourney returns the traveler's active journey id.
func (c *RedisCache) GetActiveJourney(ctx context.Context, travelerID string) (string, error) {
	id, err := c.cache.Get(ctx, activeKey(travelerID))
	if err != nil {
		if isNotFound(err) {
			return "", ErrNoActivePointer
		}
		return "", fmt.Errorf("get active journey: %w", err)
	}
	return id, nil
}

// ClearActiveJourney removes the traveler's active journey pointer.
func (c *RedisCache) ClearActiveJourney(ctx context.Context, travelerID string) error {
	if err := c.cache.Delete(ctx, activeKey(travelerID)); err != nil {
		return fmt.Errorf("clear active journey: %w", err)
	}
	return nil
}

// isNotFound reports whether err is a cache miss. gocache wraps redis.Nil
// in its own not-found error.
func isNotFound(err error) bool {
	return errors.Is(err, redis.Nil) || strings.Contains(err.Error(), "value not found")
}

// Ensure RedisCache implements Cache.
var _ Cache = (*RedisCache)(nil)
