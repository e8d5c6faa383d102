package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/namanjain27/EchoPilot/internal/repository"
)

// Store persists one cumulative summary per key.
type Store interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, summary string) error
}

// RepositoryStore keeps summaries in the SQL repository.
type RepositoryStore struct {
	repo repository.Store
}

func NewRepositoryStore(repo repository.Store) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

func (s *RepositoryStore) Load(ctx context.Context, key string) (string, error) {
	return s.repo.LoadSummary(ctx, key)
}

func (s *RepositoryStore) Save(ctx context.Context, key, summary string) error {
	return s.repo.SaveSummary(ctx, key, summary)
}

const redisKeyPrefix = "echopilot:summary:"

// redisKV is the part of the go-redis client the store uses.
type redisKV interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Close() error
}

// RedisStore keeps summaries in Redis without expiry.
type RedisStore struct {
	rdb redisKV
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *RedisStore) Save(ctx context.Context, key, summary string) error {
	return s.rdb.Set(ctx, redisKeyPrefix+key, summary, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
