package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/storage/redis/v3"

	"kwrec/internal/model"
)

// DefaultRedisKey holds the serialized model.
const DefaultRedisKey = "kwrec:model:current"

// KV is the subset of a fiber storage backend the redis store needs.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
}

// RedisStore keeps the current model under one key, shared by every
// replica pointed at the same Redis.
type RedisStore struct {
	kv  KV
	key string
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(url string) *RedisStore {
	return NewKVStore(redis.New(redis.Config{URL: url}), DefaultRedisKey)
}

// NewKVStore wraps any fiber storage backend.
func NewKVStore(kv KV, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{kv: kv, key: key}
}

// Name implements Store.
func (s *RedisStore) Name() string { return KindRedis }

// Load decodes the stored model. Fiber storages return nil for a missing key.
func (s *RedisStore) Load(_ context.Context) (*model.Model, error) {
	data, err := s.kv.Get(s.key)
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	if len(data) == 0 {
		return nil, ErrNoSnapshot
	}
	return model.DeserializeBytes(data)
}

// Save overwrites the stored model. It never expires.
func (s *RedisStore) Save(_ context.Context, m *model.Model) error {
	data, err := m.Bytes()
	if err != nil {
		return err
	}
	if err := s.kv.Set(s.key, data, 0); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}
