package limiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "limiter:proposals:"

const redisTimeout = 300 * time.Millisecond

// Limiter считает созданные пользователем предложения в окне одного часа
type Limiter struct {
	Redis *redis.Client
	Limit int
}

// Reserve занимает место в лимите текущего часа. Проверкой служит результат
// INCR, поэтому параллельные запросы не превысят Limit. При отказе счётчик
// возвращается обратно.
func (l *Limiter) Reserve(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := userCounterKey(userID, time.Now())

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := l.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("can't increment user's counter: %w", err)
	}

	if val == 1 {
		if err := l.Redis.Expire(ctx, key, time.Hour).Err(); err != nil {
			return false, fmt.Errorf("can't set counter expiration: %w", err)
		}
	}

	if val > int64(l.Limit) {
		if err := l.Redis.Decr(ctx, key).Err(); err != nil {
			return false, fmt.Errorf("can't decrement user's counter: %w", err)
		}
		return false, nil
	}

	return true, nil
}

// Release возвращает место, занятое Reserve, если предложение не создано
func (l *Limiter) Release(ctx context.Context, userID uuid.UUID) error {
	key := userCounterKey(userID, time.Now())

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	val, err := l.Redis.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("can't decrement user's counter: %w", err)
	}

	// на границе часа ключ уже новый
	if val < 0 {
		if err := l.Redis.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("can't delete user's counter: %w", err)
		}
	}

	return nil
}

// userCounterKey состоит из ID пользователя и начала текущего часа
func userCounterKey(userID uuid.UUID, now time.Time) string {
	hour := now.Truncate(time.Hour).Unix()
	return cacheKeyPrefix + userID.String() + ":" + strconv.FormatInt(hour, 10)
}
