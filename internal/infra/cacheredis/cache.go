package cacheredis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"wipetrace/internal/domain"
	"wipetrace/internal/usecase"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wipetrace:verify:"

// Cache stores public verification results in redis so repeated lookups of
// the same code do not hit the primary store.
type Cache struct {
	client *redis.Client
}

func New(addr, password string, dbIndex int) (*Cache, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})
	return &Cache{client: client}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.VerificationResult, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var result domain.VerificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, value domain.VerificationResult, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, raw, ttl).Err()
}

func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

var _ usecase.VerificationCache = (*Cache)(nil)
