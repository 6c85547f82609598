package nonce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"credreg/internal/auth/models"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/sentinel"
)

const challengeKeyPrefix = "auth:challenge:"

// RedisStore shares outstanding challenges between instances. Keys expire
// with the challenge and GETDEL makes consumption single-use.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, ch *models.Challenge, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	return s.client.Set(ctx, challengeKeyPrefix+ch.Principal.String(), data, ttl).Err()
}

func (s *RedisStore) Consume(ctx context.Context, p id.Principal) (*models.Challenge, error) {
	data, err := s.client.GetDel(ctx, challengeKeyPrefix+p.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("challenge for %s: %w", p, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	var ch models.Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	if ch.IsExpired(s.now()) {
		return nil, fmt.Errorf("challenge for %s: %w", p, sentinel.ErrExpired)
	}
	return &ch, nil
}
