package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"MGProject/tools/errs"
)

// RedisConfig 用于初始化 Redis 后端
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	OpTimeout time.Duration // 单次操作超时，默认 DefaultOpTimeout
}

type redisStore struct {
	client    *goredis.Client
	opTimeout time.Duration
}

// NewRedisStore 连接 Redis 并返回 Store 实现（注入式，不再用包级单例）
func NewRedisStore(c RedisConfig) (Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errs.ErrStorage.WrapMsg("redis ping failed", "addr", c.Addr, "err", err.Error())
	}

	t := c.OpTimeout
	if t <= 0 {
		t = DefaultOpTimeout
	}
	return &redisStore{client: rdb, opTimeout: t}, nil
}

func (s *redisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.wrap(err, "get", key)
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, opts *SetOpts) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var ttl time.Duration
	if opts != nil && opts.TTL > 0 {
		ttl = opts.TTL
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return s.wrap(err, "set", key)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return s.wrap(err, "del", key)
	}
	return nil
}

func (s *redisStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return nil, s.wrap(err, "scan", prefix)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.wrap(err, "ping", "")
	}
	return nil
}

func (s *redisStore) Close() error { return s.client.Close() }

func (s *redisStore) wrap(err error, op, key string) error {
	return errs.ErrStorage.WrapMsg("redis "+op+" failed", "key", key, "err", err.Error())
}
