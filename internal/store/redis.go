package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore persists explanation batches in Redis with TTL-based expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, prefix: "lime:batch:"}, nil
}

func (r *RedisStore) Put(ctx context.Context, batchID string, recs []Record, ttl time.Duration) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	// SETNX keeps the first write; re-explaining the same batch is a no-op.
	if err := r.client.SetNX(ctx, r.prefix+batchID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis SETNX failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, batchID string) ([]Record, error) {
	data, err := r.client.Get(ctx, r.prefix+batchID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	return recs, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
