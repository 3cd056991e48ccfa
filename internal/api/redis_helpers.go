package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// hourlyLimiter 按自然小时分桶计数，key 形如 rate:<scope>:<subject>:<YYYYMMDDHH>。
type hourlyLimiter struct {
	client redisRateCounter
	scope  string
	limit  int
}

func (l hourlyLimiter) enabled() bool {
	return l.client != nil && l.limit > 0
}

func (l hourlyLimiter) key(subject string, now time.Time) string {
	return fmt.Sprintf("rate:%s:%s:%s", l.scope, subject, now.UTC().Format("2006010215"))
}

// allow 计数一次并报告是否仍在限额内。计数器出错时返回 error，由调用方决定放行与否。
func (l hourlyLimiter) allow(ctx context.Context, subject string, now time.Time) (bool, error) {
	if !l.enabled() {
		return true, nil
	}
	key := l.key(subject, now)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		// 首次计数设置过期，桶在窗口结束后自然消失
		_ = l.client.Expire(ctx, key, time.Hour).Err()
	}
	return count <= int64(l.limit), nil
}
