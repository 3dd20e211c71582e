package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const pendingKeyPrefix = "exchanges:pending:"

const redisTimeout = 300 * time.Millisecond

// NewRedis создаёт клиент Redis; порт по умолчанию 6379
func NewRedis(addr, user, password string) (*redis.Client, func() error) {
	if !strings.Contains(addr, ":") {
		addr = addr + ":6379"
	}

	r := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: user,
		Password: password,
	})

	return r, r.Close
}

// PendingCounts кэш количества входящих ожидающих предложений пользователя
type PendingCounts struct {
	Redis *redis.Client
	TTL   time.Duration
}

// Get возвращает значение из кэша; ok=false при промахе
func (p *PendingCounts) Get(ctx context.Context, userID uuid.UUID) (count int, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	count, err = p.Redis.Get(ctx, pendingKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("can't get pending count: %w", err)
	}
	return count, true, nil
}

func (p *PendingCounts) Set(ctx context.Context, userID uuid.UUID, count int) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := p.Redis.Set(ctx, pendingKey(userID), count, p.TTL).Err(); err != nil {
		return fmt.Errorf("can't set pending count: %w", err)
	}
	return nil
}

func (p *PendingCounts) Invalidate(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := p.Redis.Del(ctx, pendingKey(userID)).Err(); err != nil {
		return fmt.Errorf("can't invalidate pending count: %w", err)
	}
	return nil
}

func pendingKey(userID uuid.UUID) string {
	return pendingKeyPrefix + userID.String()
}
