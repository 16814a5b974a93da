package offchain

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

const redisKeyPrefix = "bounty-bot:block:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL of cached blocks, zero keeps them forever.
	TTL time.Duration
}

// RedisStore shares blocks between bot instances.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &RedisStore{rdb: rdb, ttl: cfg.TTL}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func redisKey(addr agreement.ContentAddress) string {
	return redisKeyPrefix + addr.Hex()[2:]
}

func (s *RedisStore) Get(ctx context.Context, addr agreement.ContentAddress) ([]byte, error) {
	block, err := s.rdb.Get(ctx, redisKey(addr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrBlockNotFound
	}
	return block, err
}

func (s *RedisStore) Put(ctx context.Context, addr agreement.ContentAddress, block []byte) error {
	return s.rdb.SetNX(ctx, redisKey(addr), block, s.ttl).Err()
}
