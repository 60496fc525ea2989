package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter はログイン失敗回数を数え、上限に達したキーをロックします。
type AttemptLimiter interface {
	// Locked はロック中なら残り時間を返します。
	Locked(ctx context.Context, key string) (time.Duration, error)
	// Fail は失敗を記録し、ロックまでの残り回数を返します。
	Fail(ctx context.Context, key string) (int, error)
	// Reset はキーの記録を消します。
	Reset(ctx context.Context, key string) error
}

// LimiterPolicy はスロットリングの閾値です。
type LimiterPolicy struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// MemoryLimiter はプロセス内マップで試行回数を保持します。
type MemoryLimiter struct {
	policy    LimiterPolicy
	lock      sync.Mutex
	attempts  map[string]*attemptState
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryLimiter は MemoryLimiter を作成します。
func NewMemoryLimiter(policy LimiterPolicy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:   policy,
		attempts: make(map[string]*attemptState),
		now:      time.Now,
	}
}

// Locked implements AttemptLimiter.
func (l *MemoryLimiter) Locked(_ context.Context, key string) (time.Duration, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	state, ok := l.attempts[key]
	if !ok {
		return 0, nil
	}
	now := l.now()
	if l.stale(state, now) {
		delete(l.attempts, key)
		return 0, nil
	}
	if now.After(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

// Fail implements AttemptLimiter.
func (l *MemoryLimiter) Fail(_ context.Context, key string) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	l.sweep(now)
	state, ok := l.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > l.policy.Window {
		state = &attemptState{firstAttempt: now}
		l.attempts[key] = state
	}

	state.count++
	if state.count >= l.policy.MaxAttempts {
		state.lockedUntil = now.Add(l.policy.LockDuration)
		state.count = l.policy.MaxAttempts
	}

	return max(l.policy.MaxAttempts-state.count, 0), nil
}

// sweep は期間もロックも切れたキーを削除します。呼び出し側でロックを保持すること。
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.policy.Window {
		return
	}
	l.lastSweep = now
	for key, state := range l.attempts {
		if l.stale(state, now) {
			delete(l.attempts, key)
		}
	}
}

func (l *MemoryLimiter) stale(state *attemptState, now time.Time) bool {
	return now.Sub(state.firstAttempt) > l.policy.Window && !now.Before(state.lockedUntil)
}

// Reset implements AttemptLimiter.
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.attempts, key)
	return nil
}

const (
	limiterFailPrefix = "login:fail:"
	limiterLockPrefix = "login:lock:"
)

// RedisLimiter は Redis に試行回数を保持し、複数インスタンスで共有します。
type RedisLimiter struct {
	rdb    *redis.Client
	policy LimiterPolicy
}

// NewRedisLimiter は RedisLimiter を作成します。
func NewRedisLimiter(rdb *redis.Client, policy LimiterPolicy) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, policy: policy}
}

// Locked implements AttemptLimiter.
func (l *RedisLimiter) Locked(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.rdb.PTTL(ctx, limiterLockPrefix+key).Result()
	if err != nil {
		return 0, err
	}
	// キーが無い場合は負値が返る
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// Fail implements AttemptLimiter.
func (l *RedisLimiter) Fail(ctx context.Context, key string) (int, error) {
	failKey := limiterFailPrefix + key
	count, err := l.rdb.Incr(ctx, failKey).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, failKey, l.policy.Window).Err(); err != nil {
			return 0, err
		}
	}
	if count >= int64(l.policy.MaxAttempts) {
		pipe := l.rdb.TxPipeline()
		pipe.Set(ctx, limiterLockPrefix+key, "1", l.policy.LockDuration)
		pipe.Del(ctx, failKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return l.policy.MaxAttempts - int(count), nil
}

// Reset implements AttemptLimiter.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, limiterFailPrefix+key, limiterLockPrefix+key).Err()
}
