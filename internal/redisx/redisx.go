// Package redisx wraps the redis commands the platform relies on behind a
// narrow interface so queue and cache-flag logic stays testable without a
// live server.
package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the slice of redis used by the tenant task queue and the
// document lifecycle cache flags.
type Client interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets the key only when absent; reports whether it was set.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	LPush(ctx context.Context, key string, values ...string) error
	// RPop returns the tail element and whether the list had one.
	RPop(ctx context.Context, key string) (string, bool, error)
}

var _ Client = (*GoRedis)(nil)

// GoRedis adapts a go-redis client to Client.
type GoRedis struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *GoRedis {
	return &GoRedis{rdb: rdb}
}

func (r *GoRedis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *GoRedis) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.SetEx(ctx, key, value, ttl).Err()
}

func (r *GoRedis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (r *GoRedis) Del(ctx context.Context, keys ...string) error {
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *GoRedis) LPush(ctx context.Context, key string, values ...string) error {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return r.rdb.LPush(ctx, key, vals...).Err()
}

func (r *GoRedis) RPop(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.RPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
