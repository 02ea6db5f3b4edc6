package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/samuelfneumann/vrprl/agent/policy"
)

// keyPrefix prefixes the Redis key of every model
const keyPrefix = "vrprl:policy:"

// Redis stores each table under a key named after its model
type Redis struct {
	rdb *redis.Client
}

// OpenRedis connects to the Redis server at url
func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("open redis: ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// Load implements the Store interface
func (r *Redis) Load(ctx context.Context, model string) (*policy.Table, error) {
	if err := validateModel(model); err != nil {
		return nil, fmt.Errorf("redis load: %w", err)
	}

	data, err := r.rdb.Get(ctx, keyPrefix+model).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis load %q: %w", model, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis load %q: %w", model, err)
	}

	t, err := policy.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("redis load %q: %w", model, err)
	}
	return t, nil
}

// Save implements the Store interface
func (r *Redis) Save(ctx context.Context, model string, t *policy.Table) error {
	if err := validateModel(model); err != nil {
		return fmt.Errorf("redis save: %w", err)
	}

	data, err := policy.Encode(t)
	if err != nil {
		return fmt.Errorf("redis save %q: %w", model, err)
	}
	if err := r.rdb.Set(ctx, keyPrefix+model, data, 0).Err(); err != nil {
		return fmt.Errorf("redis save %q: %w", model, err)
	}
	return nil
}

// Close implements the Store interface
func (r *Redis) Close() error {
	return r.rdb.Close()
}
