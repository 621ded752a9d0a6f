package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/jbt95/trenes/internal/history"
)

// RedisOptions configures the Redis store
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Redis keeps the index as a list of JSON descriptors under
// "<prefix>:index" and each entry under "<prefix>:entry:<id>"
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects and pings the server
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	log.Printf("Store: connected to Redis at %s (prefix %s)", opts.Addr, opts.KeyPrefix)
	return NewRedis(client, opts.KeyPrefix), nil
}

// NewRedis wraps an existing client
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) indexKey() string {
	return r.prefix + ":index"
}

func (r *Redis) entryKey(id string) string {
	return r.prefix + ":entry:" + id
}

func (r *Redis) ListIndex(ctx context.Context) ([]history.IndexEntry, error) {
	raw, err := r.client.LRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index from Redis: %w", err)
	}

	entries := make([]history.IndexEntry, 0, len(raw))
	for i, item := range raw {
		var e history.IndexEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal index entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *Redis) AppendIndexEntry(ctx context.Context, e history.IndexEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal index entry: %w", err)
	}
	if err := r.client.RPush(ctx, r.indexKey(), data).Err(); err != nil {
		return fmt.Errorf("failed to append index entry to Redis: %w", err)
	}
	return nil
}

// RewriteIndex replaces the list in one MULTI/EXEC
func (r *Redis) RewriteIndex(ctx context.Context, entries []history.IndexEntry) error {
	values := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal index entry: %w", err)
		}
		values = append(values, data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.indexKey())
		if len(values) > 0 {
			pipe.RPush(ctx, r.indexKey(), values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to rewrite index in Redis: %w", err)
	}
	return nil
}

func (r *Redis) ReadEntry(ctx context.Context, id string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry from Redis: %w", err)
	}
	return data, nil
}

func (r *Redis) WriteEntry(ctx context.Context, id string, payload []byte) error {
	if err := r.client.Set(ctx, r.entryKey(id), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to set entry in Redis: %w", err)
	}
	return nil
}

func (r *Redis) DeleteEntry(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.entryKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete entry from Redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
