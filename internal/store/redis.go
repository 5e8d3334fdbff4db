package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "aura:insight:"

// RedisStore keeps one JSON-encoded entry per bucket under aura:insight:<bucket>.
// SET replaces the value in one step, which gives Put its atomicity.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client without pinging it.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(b horizon.Bucket) string {
	return redisKeyPrefix + string(b)
}

// Get reads the entry for b.
func (r *RedisStore) Get(ctx context.Context, b horizon.Bucket) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, redisKey(b)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", b, err)
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return Entry{}, false, fmt.Errorf("decode entry %s: %w", b, err)
	}
	return e, true, nil
}

// Put replaces the entry for b. Entries never expire.
func (r *RedisStore) Put(ctx context.Context, b horizon.Bucket, e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", b, err)
	}
	if err := r.client.Set(ctx, redisKey(b), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", b, err)
	}
	return nil
}

// List scans every aura:insight:* key.
func (r *RedisStore) List(ctx context.Context) (map[horizon.Bucket]Entry, error) {
	out := make(map[horizon.Bucket]Entry)
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b := horizon.Bucket(strings.TrimPrefix(key, redisKeyPrefix))
		e, ok, err := r.Get(ctx, b)
		if err != nil {
			return nil, err
		}
		if ok {
			out[b] = e
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return out, nil
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func decodeEntry(raw []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
