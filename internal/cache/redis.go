package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var _ StatCache = (*Redis)(nil)

type Redis struct {
	client *redis.Client
}

func NewRedis(addr string) *Redis {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // No password set
		DB:       0,  // Use default DB
		Protocol: 2,  // Connection protocol
	})

	return &Redis{client: client}
}

// NewRedisClient wraps an already-configured redis client.
func NewRedisClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	res := r.client.Get(ctx, key)
	if res.Err() != nil {
		if !errors.Is(res.Err(), redis.Nil) {
			logrus.Errorf("redis get %s: %v", key, res.Err())
		}
		return "", false
	}
	return res.Val(), true
}

func (r *Redis) Set(ctx context.Context, key string, report string, ttl time.Duration) error {
	return r.client.Set(ctx, key, report, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
