package maintenance

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-agent/internal/agent/cache"
	"finance-agent/internal/agent/ratelimit"
	"finance-agent/internal/common/config"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/models"
)

func TestAdd_RejectsBadSchedules(t *testing.T) {
	s := New(logger.NewTestLogger(t))
	noop := func(ctx context.Context) (int, error) { return 0, nil }

	require.NoError(t, s.Add("disabled", "", noop))
	assert.Empty(t, s.Tasks())

	require.Error(t, s.Add("bad", "every tuesday", noop))
	require.NoError(t, s.Add("ok", "@every 1m", noop))
	require.Error(t, s.Add("ok", "@every 2m", noop))
}

func TestRunNow(t *testing.T) {
	s := New(logger.NewTestLogger(t))
	var runs atomic.Int32
	require.NoError(t, s.Add("count", "@every 1h", func(ctx context.Context) (int, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		runs.Add(1)
		return 3, nil
	}))
	require.NoError(t, s.Add("broken", "@every 1h", func(ctx context.Context) (int, error) {
		return 0, errors.New("store offline")
	}))

	require.NoError(t, s.RunNow("count"))
	assert.Equal(t, int32(1), runs.Load())
	assert.EqualError(t, s.RunNow("broken"), "store offline")
	assert.Error(t, s.RunNow("missing"))
}

func TestStart_RunsOnSchedule(t *testing.T) {
	s := New(logger.NewTestLogger(t))
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) (int, error) {
		runs.Add(1)
		return 0, nil
	}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestStart_RecoversPanics(t *testing.T) {
	s := New(logger.NewTestLogger(t))
	var runs atomic.Int32
	require.NoError(t, s.Add("panics", "@every 1s", func(ctx context.Context) (int, error) {
		runs.Add(1)
		panic("sweep exploded")
	}))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestRegisterDefaults(t *testing.T) {
	log := logger.NewTestLogger(t)
	store := cache.NewMemoryStore()
	c := cache.New(store, log)
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), map[string]ratelimit.Class{
		"default": {Requests: 5, Window: time.Millisecond},
	}, "test:", log)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, models.CacheEntry{
		Fingerprint: "old",
		CachedAt:    time.Now().Add(-time.Hour),
		TTL:         time.Minute.Milliseconds(),
	}))
	_, err := limiter.Record(ctx, "c1", "default")
	require.NoError(t, err)

	s := New(log)
	require.NoError(t, s.RegisterDefaults(config.MaintenanceConfig{
		CachePurgeSchedule:     "@every 5m",
		RateLimitSweepSchedule: "@every 5m",
	}, Targets{Cache: c, Limiter: limiter}))

	names := s.Tasks()
	sort.Strings(names)
	assert.Equal(t, []string{"cache-purge", "rate-limit-sweep"}, names)

	require.NoError(t, s.RunNow("cache-purge"))
	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.RunNow("rate-limit-sweep"))
}
