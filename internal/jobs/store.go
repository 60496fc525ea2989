package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yourusername/fishcare-api/internal/auth"
)

const (
	activityKeyPrefix = "activity:"
	maxApplyRetries   = 5
)

// Store は認証アクティビティを Redis に保存します。
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
		now: time.Now,
	}
}

// Close は Redis クライアントを閉じます。
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Get はアクティビティを取得します。記録がなければ nil を返します。
func (s *Store) Get(ctx context.Context, mobile string) (*Activity, error) {
	if mobile == "" {
		return nil, fmt.Errorf("mobile is required")
	}
	data, err := s.rdb.Get(ctx, activityKey(mobile)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var activity Activity
	if err := json.Unmarshal(data, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// Apply はイベントを集計に反映します。同じキーへの同時更新は WATCH で検出して再試行します。
func (s *Store) Apply(ctx context.Context, event auth.Event) (*Activity, error) {
	if event.Mobile == "" {
		return nil, fmt.Errorf("event mobile is required")
	}
	key := activityKey(event.Mobile)

	var result Activity
	txf := func(tx *redis.Tx) error {
		result = Activity{}
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, &result); err != nil {
				return err
			}
		}

		result.apply(event)
		result.UpdatedAt = s.now().UTC()

		payload, err := json.Marshal(&result)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxApplyRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &result, nil
	}
	return nil, fmt.Errorf("activity update for %s kept conflicting", event.Mobile)
}

func activityKey(mobile string) string {
	return activityKeyPrefix + mobile
}
