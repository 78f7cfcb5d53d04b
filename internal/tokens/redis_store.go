// Package tokens keeps single-use password-reset tokens in Redis with a TTL.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"arena/internal/auth"
	"arena/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	KeyResetToken = "reset:token:%s"
	KeyResetIndex = "reset:index"
)

var ErrTokenNotFound = errors.New("reset token not found or expired")

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Issue stores a fresh token for userID and returns it with its expiry.
func (s *RedisStore) Issue(ctx context.Context, userID string) (string, time.Time, error) {
	token, err := auth.NewOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := s.now().Add(s.ttl)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fmt.Sprintf(KeyResetToken, token), userID, s.ttl)
		pipe.ZAdd(ctx, KeyResetIndex, redis.Z{Score: float64(expiresAt.Unix()), Member: token})
		return nil
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Consume returns the owning user id and deletes the token so it cannot be reused.
func (s *RedisStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, fmt.Sprintf(KeyResetToken, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	s.client.ZRem(ctx, KeyResetIndex, token)
	return userID, nil
}

// Sweep drops index members whose expiry has passed, along with any key
// that somehow outlived its TTL. It returns how many members were removed.
func (s *RedisStore) Sweep(ctx context.Context) (int64, error) {
	cutoff := strconv.FormatInt(s.now().Unix(), 10)
	expired, err := s.client.ZRangeByScore(ctx, KeyResetIndex, &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(expired))
	for _, token := range expired {
		keys = append(keys, fmt.Sprintf(KeyResetToken, token))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	return s.client.ZRemRangeByScore(ctx, KeyResetIndex, "-inf", cutoff).Result()
}
