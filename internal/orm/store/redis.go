package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to all keys
	Prefix string
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "refproxy:",
	}
}

// RedisStore implements a Redis-backed document store
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisStoreWithClient(client, config.Prefix), nil
}

// NewRedisStoreWithClient creates a store on an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisStore) key(class, id string) string {
	return r.prefix + class + ":" + id
}

// Get retrieves a document
func (r *RedisStore) Get(ctx context.Context, class, id string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.key(class, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, NotFound(class, id)
		}
		return nil, err
	}
	return value, nil
}

// Put creates or replaces a document
func (r *RedisStore) Put(ctx context.Context, class, id string, doc []byte) error {
	return r.client.Set(ctx, r.key(class, id), doc, 0).Err()
}

// Delete removes a document
func (r *RedisStore) Delete(ctx context.Context, class, id string) error {
	return r.client.Del(ctx, r.key(class, id)).Err()
}

// Exists checks if a document is stored
func (r *RedisStore) Exists(ctx context.Context, class, id string) (bool, error) {
	count, err := r.client.Exists(ctx, r.key(class, id)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns the identifiers stored for class
func (r *RedisStore) List(ctx context.Context, class string) ([]string, error) {
	prefix := r.key(class, "")

	var ids []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
