package store

import (
	"context"
	"fmt"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/data/redisStore"
	"github.com/docuqa/docuqa/internal/retrieval/cache"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

var _ cache.Store = (*RedisCacheStore)(nil)

// RedisCacheStore backs the content and query caches with Redis instead of
// the filesystem. Redis SET is already atomic, so the commit semantics the
// caches rely on hold without temp files.
type RedisCacheStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisCacheStore(ctx context.Context) *RedisCacheStore {
	rs := redisStore.GetRedisStore(ctx, config.RedisCacheStore)
	if rs == nil {
		return nil
	}
	return &RedisCacheStore{
		store:  rs,
		logger: logger_i.NewLogger("CacheStore"),
	}
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.store.GetBytes(ctx, key)
	if err != nil {
		if s.store.IsNil(err) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, key string, value []byte) error {
	// cache entries have no TTL; they die by invalidation
	return s.store.Set(ctx, key, value, 0)
}

func (s *RedisCacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.store.Del(ctx, keys...)
}

func (s *RedisCacheStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.store.ScanKeys(ctx, fmt.Sprintf("%s*", prefix))
}

func TestCacheStore(store *redisStore.Store) *RedisCacheStore {
	return &RedisCacheStore{
		store:  store,
		logger: logger_i.NewLogger("test cache store"),
	}
}
