package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/models"
)

var testPolicy = TTLPolicy{Entity: 15 * time.Minute, General: 30 * time.Minute}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func stores(t *testing.T) map[string]Store {
	_, client := setupRedis(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, "agent:cache:"),
	}
}

func sampleIntent(entities ...string) models.Intent {
	return models.Intent{
		Kind:       models.IntentComprehensiveAnalysis,
		Entities:   entities,
		Parameters: map[string]string{"analysis_type": "comprehensive", "recency": "week"},
	}
}

func reliableAnswer(text string) models.Answer {
	return models.Answer{
		Text:         text,
		ProviderUsed: "primary",
		ToolsUsed:    []string{"stock-quote", "company-news"},
		IsReliable:   true,
		Usage:        models.Usage{InputTokens: 120, OutputTokens: 80, Cost: 0.0021},
		GeneratedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// ==========================
// Fingerprint
// ==========================

func TestFingerprint_Canonical(t *testing.T) {
	a := sampleIntent("AAPL", "MSFT")
	b := sampleIntent("msft", " aapl")
	b.Parameters = map[string]string{"recency": "Week", "analysis_type": "comprehensive "}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)
}

func TestFingerprint_Distinguishes(t *testing.T) {
	base := sampleIntent("AAPL")

	other := sampleIntent("AAPL")
	other.Kind = models.IntentNews
	assert.NotEqual(t, Fingerprint(base), Fingerprint(other))

	params := sampleIntent("AAPL")
	params.Parameters = map[string]string{"analysis_type": "comprehensive", "recency": "day"}
	assert.NotEqual(t, Fingerprint(base), Fingerprint(params))

	assert.NotEqual(t, Fingerprint(base), Fingerprint(sampleIntent("MSFT")))
}

func TestTTLPolicy(t *testing.T) {
	assert.Equal(t, 15*time.Minute, testPolicy.For(sampleIntent("AAPL")))
	assert.Equal(t, 30*time.Minute, testPolicy.For(models.Intent{Kind: models.IntentMarketOverview}))

	key := testPolicy.KeyFor(sampleIntent("AAPL"))
	assert.Equal(t, Fingerprint(sampleIntent("AAPL")), key.Fingerprint)
	assert.Equal(t, []string{"AAPL"}, key.Entities)
}

// ==========================
// GetOrCompute
// ==========================

func TestGetOrCompute_SingleFlight(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := New(store, logger.NewTestLogger(t))
			key := testPolicy.KeyFor(sampleIntent("AAPL"))

			var calls atomic.Int32
			release := make(chan struct{})
			compute := func(ctx context.Context) (models.Answer, error) {
				calls.Add(1)
				<-release
				return reliableAnswer("AAPL looks steady"), nil
			}

			const callers = 20
			var wg sync.WaitGroup
			answers := make([]models.Answer, callers)
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					answers[i], _, errs[i] = c.GetOrCompute(context.Background(), key, compute)
				}(i)
			}
			time.Sleep(50 * time.Millisecond)
			close(release)
			wg.Wait()

			assert.Equal(t, int32(1), calls.Load())
			for i := 0; i < callers; i++ {
				require.NoError(t, errs[i])
				assert.Equal(t, "AAPL looks steady", answers[i].Text)
			}

			stats, err := c.Stats(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(1), stats.Misses)
			assert.Equal(t, int64(callers-1), stats.Hits+stats.Shared)
			assert.Equal(t, int64(1), stats.Entries)
		})
	}
}

func TestGetOrCompute_HitReturnsStoredAnswer(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := New(store, logger.NewTestLogger(t))
			key := testPolicy.KeyFor(sampleIntent("AAPL"))
			ctx := context.Background()

			first, cached, err := c.GetOrCompute(ctx, key, func(context.Context) (models.Answer, error) {
				return reliableAnswer("first"), nil
			})
			require.NoError(t, err)
			assert.False(t, cached)

			second, cached, err := c.GetOrCompute(ctx, key, func(context.Context) (models.Answer, error) {
				t.Fatal("compute must not run on a hit")
				return models.Answer{}, nil
			})
			require.NoError(t, err)
			assert.True(t, cached)

			want, _ := json.Marshal(first)
			got, _ := json.Marshal(second)
			assert.JSONEq(t, string(want), string(got))
			assert.Equal(t, string(want), string(got))
		})
	}
}

func TestGetOrCompute_FailureNotCached(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := New(store, logger.NewTestLogger(t))
			key := testPolicy.KeyFor(sampleIntent("AAPL"))
			ctx := context.Background()
			cause := errors.New("tools exploded")

			var calls atomic.Int32
			failing := func(context.Context) (models.Answer, error) {
				calls.Add(1)
				return models.Answer{}, cause
			}

			_, _, err := c.GetOrCompute(ctx, key, failing)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheComputeFailed))
			assert.ErrorIs(t, err, cause)

			_, _, err = c.GetOrCompute(ctx, key, failing)
			require.Error(t, err)
			assert.Equal(t, int32(2), calls.Load())

			n, err := store.Len(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestGetOrCompute_WaitersShareFailure(t *testing.T) {
	c := New(NewMemoryStore(), logger.NewTestLogger(t))
	key := testPolicy.KeyFor(sampleIntent("TSLA"))

	release := make(chan struct{})
	compute := func(context.Context) (models.Answer, error) {
		<-release
		return models.Answer{}, errors.New("provider down")
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = c.GetOrCompute(context.Background(), key, compute)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheComputeFailed))
	}
}

func TestGetOrCompute_UnreliableAnswerNotStored(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, logger.NewTestLogger(t))
	key := testPolicy.KeyFor(sampleIntent("AAPL"))
	ctx := context.Background()

	degraded := reliableAnswer("partial view")
	degraded.IsReliable = false

	got, cached, err := c.GetOrCompute(ctx, key, func(context.Context) (models.Answer, error) {
		return degraded, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "partial view", got.Text)

	n, _ := store.Len(ctx)
	assert.Zero(t, n)
}

func TestGetOrCompute_ExpiredEntryRecomputes(t *testing.T) {
	c := New(NewMemoryStore(), logger.NewTestLogger(t))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	key := testPolicy.KeyFor(sampleIntent("AAPL"))
	ctx := context.Background()

	var calls atomic.Int32
	compute := func(context.Context) (models.Answer, error) {
		calls.Add(1)
		return reliableAnswer("fresh"), nil
	}

	_, _, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)

	now = now.Add(14 * time.Minute)
	_, cached, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.True(t, cached)

	now = now.Add(2 * time.Minute)
	_, cached, err = c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrCompute_CanceledCaller(t *testing.T) {
	c := New(NewMemoryStore(), logger.NewTestLogger(t)).WithComputeTimeout(50 * time.Millisecond)
	key := testPolicy.KeyFor(sampleIntent("AAPL"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := c.GetOrCompute(ctx, key, func(ctx context.Context) (models.Answer, error) {
		<-ctx.Done()
		return models.Answer{}, ctx.Err()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetOrCompute_LeaderCancelDoesNotFailWaiters(t *testing.T) {
	c := New(NewMemoryStore(), logger.NewTestLogger(t))
	key := testPolicy.KeyFor(sampleIntent("NVDA"))

	var calls atomic.Int32
	release := make(chan struct{})
	computeErr := make(chan error, 1)
	compute := func(ctx context.Context) (models.Answer, error) {
		calls.Add(1)
		<-release
		computeErr <- ctx.Err()
		return reliableAnswer("NVDA extends gains"), nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, key, compute)
		leaderDone <- err
	}()
	time.Sleep(20 * time.Millisecond)

	type result struct {
		answer models.Answer
		cached bool
		err    error
	}
	waiterDone := make(chan result, 1)
	go func() {
		a, cached, err := c.GetOrCompute(context.Background(), key, compute)
		waiterDone <- result{a, cached, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderDone, context.Canceled)

	close(release)
	got := <-waiterDone
	require.NoError(t, got.err)
	assert.Equal(t, "NVDA extends gains", got.answer.Text)
	assert.True(t, got.cached)
	assert.NoError(t, <-computeErr, "shared computation must outlive the leader")
	assert.Equal(t, int32(1), calls.Load())
}

// gatedStore holds the first Get until gate closes, then reports a miss.
type gatedStore struct {
	Store
	gets   atomic.Int32
	inGate chan struct{}
	gate   chan struct{}
}

func (s *gatedStore) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	if s.gets.Add(1) == 1 {
		close(s.inGate)
		<-s.gate
		return nil, nil
	}
	return s.Store.Get(ctx, fingerprint)
}

func TestGetOrCompute_MissThenLateFlightUsesStoredAnswer(t *testing.T) {
	store := &gatedStore{Store: NewMemoryStore(), inGate: make(chan struct{}), gate: make(chan struct{})}
	c := New(store, logger.NewTestLogger(t))
	key := testPolicy.KeyFor(sampleIntent("AMD"))

	var calls atomic.Int32
	compute := func(context.Context) (models.Answer, error) {
		calls.Add(1)
		return reliableAnswer("AMD flat"), nil
	}

	slowDone := make(chan bool, 1)
	go func() {
		_, cached, err := c.GetOrCompute(context.Background(), key, compute)
		assert.NoError(t, err)
		slowDone <- cached
	}()
	<-store.inGate

	_, cached, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.False(t, cached)

	close(store.gate)
	assert.True(t, <-slowDone)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrCompute_StoreErrorFallsThrough(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(NewRedisStore(client, "agent:cache:"), logger.NewTestLogger(t))
	key := testPolicy.KeyFor(models.Intent{Kind: models.IntentMarketOverview})

	mock.ExpectGet("agent:cache:entry:" + key.Fingerprint).SetErr(errors.New("connection refused"))
	mock.ExpectGet("agent:cache:entry:" + key.Fingerprint).SetErr(errors.New("connection refused"))

	got, cached, err := c.GetOrCompute(context.Background(), key, func(context.Context) (models.Answer, error) {
		a := reliableAnswer("markets mixed")
		a.IsReliable = false
		return a, nil
	})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "markets mixed", got.Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Invalidation and purge
// ==========================

func TestInvalidateEntity(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c := New(store, logger.NewTestLogger(t))
			ctx := context.Background()

			for _, intent := range []models.Intent{
				sampleIntent("AAPL"),
				sampleIntent("AAPL", "MSFT"),
				sampleIntent("MSFT"),
			} {
				_, _, err := c.GetOrCompute(ctx, testPolicy.KeyFor(intent), func(context.Context) (models.Answer, error) {
					return reliableAnswer("x"), nil
				})
				require.NoError(t, err)
			}

			n, err := c.InvalidateEntity(ctx, "aapl")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			left, err := store.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), left)

			n, err = c.InvalidateEntity(ctx, "AAPL")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestMemoryStore_PurgeExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Set(ctx, models.CacheEntry{Fingerprint: "a", CachedAt: now, TTL: time.Minute.Milliseconds(), Entities: []string{"AAPL"}}))
	require.NoError(t, store.Set(ctx, models.CacheEntry{Fingerprint: "b", CachedAt: now, TTL: time.Hour.Milliseconds()}))

	n, err := store.PurgeExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gone, err := store.InvalidateEntity(ctx, "AAPL")
	require.NoError(t, err)
	assert.Zero(t, gone)

	left, _ := store.Len(ctx)
	assert.Equal(t, int64(1), left)
}

func TestMemoryStore_CountsHits(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, models.CacheEntry{Fingerprint: "a", TTL: 1000}))

	_, _ = store.Get(ctx, "a")
	entry, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.Hits)

	missing, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRedisStore_SetsTTL(t *testing.T) {
	mr, client := setupRedis(t)
	store := NewRedisStore(client, "agent:cache:")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, models.CacheEntry{
		Fingerprint: "abc",
		TTL:         (15 * time.Minute).Milliseconds(),
		Entities:    []string{"AAPL"},
	}))

	assert.Equal(t, 15*time.Minute, mr.TTL("agent:cache:entry:abc"))
	members, err := mr.Members("agent:cache:entity:AAPL")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, members)

	mr.FastForward(16 * time.Minute)
	entry, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, entry)
}
