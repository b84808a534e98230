package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/storefront/pkg/cache"
)

var errNoRedis = errors.New("cart: redis is not connected")

// RedisPersister stores one cart under storefront:cart:<session>.
type RedisPersister struct {
	c   *cache.Cache
	key string
	ttl time.Duration
}

// NewRedisPersister keeps an idle cart for ttl after its last change.
func NewRedisPersister(c *cache.Cache, session string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{c: c, key: "storefront:cart:" + session, ttl: ttl}
}

func (r *RedisPersister) Load(ctx context.Context) ([]Line, error) {
	if r.c.Client() == nil {
		return nil, errNoRedis
	}
	b, err := r.c.Client().Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeLines(b)
}

func (r *RedisPersister) Save(ctx context.Context, lines []Line) error {
	if r.c.Client() == nil {
		return errNoRedis
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return r.c.Client().Set(ctx, r.key, b, r.ttl).Err()
}

func (r *RedisPersister) Clear(ctx context.Context) error {
	return r.c.Del(ctx, r.key)
}
