package jobs

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/fishcare-api/internal/auth"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, ttl), mr
}

func TestStoreApplySequence(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	_, err := store.Apply(ctx, auth.Event{Type: auth.EventRegistered, UserID: 7, Mobile: "01712345678", UserType: "farmer", OccurredAt: at})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = store.Apply(ctx, auth.Event{Type: auth.EventLoginFailed, Mobile: "01712345678", UserType: "farmer", OccurredAt: at.Add(time.Minute)})
		require.NoError(t, err)
	}

	activity, err := store.Get(ctx, "01712345678")
	require.NoError(t, err)
	require.NotNil(t, activity)
	assert.Equal(t, 2, activity.FailedLogins)
	assert.Equal(t, auth.EventLoginFailed, activity.LastEvent)
	assert.Equal(t, int64(7), activity.UserID)
	assert.True(t, activity.RegisteredAt.Equal(at))

	activity, err = store.Apply(ctx, auth.Event{Type: auth.EventLoginSucceeded, UserID: 7, Mobile: "01712345678", ClientIP: "203.0.113.5", OccurredAt: at.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 0, activity.FailedLogins)
	assert.Equal(t, "203.0.113.5", activity.LastLoginIP)
	assert.True(t, activity.LastLoginAt.Equal(at.Add(2*time.Minute)))
	assert.Equal(t, "farmer", activity.UserType)

	ttl := mr.TTL(activityKey("01712345678"))
	assert.Equal(t, time.Hour, ttl)
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	activity, err := store.Get(context.Background(), "01799999999")
	require.NoError(t, err)
	assert.Nil(t, activity)

	_, err = store.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestStoreApplyRequiresMobile(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)

	_, err := store.Apply(context.Background(), auth.Event{Type: auth.EventLoggedOut})
	assert.Error(t, err)
}

func TestStoreApplyExpires(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	_, err := store.Apply(ctx, auth.Event{Type: auth.EventLoggedOut, Mobile: "01712345678"})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	activity, err := store.Get(ctx, "01712345678")
	require.NoError(t, err)
	assert.Nil(t, activity)
}
