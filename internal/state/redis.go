package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PairSentinel/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the state as a JSON blob under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// RedisConfig holds connection settings for RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, key: stateKey(cfg.Prefix)}, nil
}

func stateKey(prefix string) string {
	if prefix == "" {
		prefix = "pairsentinel"
	}
	return prefix + ":state"
}

func (r *RedisStore) Load(ctx context.Context) (*model.State, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var st model.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return &st, nil
}

func (r *RedisStore) Save(ctx context.Context, st *model.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, 0).Err()
}

func (r *RedisStore) Close() error { return r.client.Close() }
