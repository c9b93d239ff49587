// Package cache holds synthesized answers keyed by request fingerprint and
// collapses concurrent identical computations into one.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/metrics"
	"finance-agent/internal/models"
)

// Store persists cache entries. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*models.CacheEntry, error)
	Set(ctx context.Context, entry models.CacheEntry) error
	InvalidateEntity(ctx context.Context, ticker string) (int, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Len(ctx context.Context) (int64, error)
}

// Key identifies one cacheable computation.
type Key struct {
	Fingerprint string
	TTL         time.Duration
	Entities    []string
	Kind        models.IntentKind
}

type ComputeFunc func(ctx context.Context) (models.Answer, error)

// TTLPolicy picks a lifetime by specificity.
type TTLPolicy struct {
	Entity  time.Duration
	General time.Duration
}

func (p TTLPolicy) For(intent models.Intent) time.Duration {
	if len(intent.Entities) > 0 {
		return p.Entity
	}
	return p.General
}

// KeyFor builds the cache key of an intent.
func (p TTLPolicy) KeyFor(intent models.Intent) Key {
	return Key{
		Fingerprint: Fingerprint(intent),
		TTL:         p.For(intent),
		Entities:    intent.Entities,
		Kind:        intent.Kind,
	}
}

// Fingerprint canonicalizes kind, sorted entities and sorted normalized parameters.
func Fingerprint(intent models.Intent) string {
	entities := append([]string(nil), intent.Entities...)
	for i := range entities {
		entities[i] = strings.ToUpper(strings.TrimSpace(entities[i]))
	}
	sort.Strings(entities)

	params := make([]string, 0, len(intent.Parameters))
	for k, v := range intent.Parameters {
		params = append(params, strings.ToLower(strings.TrimSpace(k))+"="+strings.ToLower(strings.TrimSpace(v)))
	}
	sort.Strings(params)

	canonical := string(intent.Kind) + "|" + strings.Join(entities, ",") + "|" + strings.Join(params, "&")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// DefaultComputeTimeout bounds a shared computation once it is detached from its caller.
const DefaultComputeTimeout = 60 * time.Second

type Cache struct {
	store          Store
	group          singleflight.Group
	logger         logger.Logger
	now            func() time.Time
	computeTimeout time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	shared atomic.Int64
	errs   atomic.Int64
}

func New(store Store, log logger.Logger) *Cache {
	return &Cache{
		store:          store,
		logger:         log.With(map[string]interface{}{"component": "cache"}),
		now:            time.Now,
		computeTimeout: DefaultComputeTimeout,
	}
}

// WithComputeTimeout sets the deadline of shared computations.
func (c *Cache) WithComputeTimeout(d time.Duration) *Cache {
	if d > 0 {
		c.computeTimeout = d
	}
	return c
}

// flight is what one singleflight run hands to every attached caller.
type flight struct {
	answer models.Answer
	stored bool
}

func (c *Cache) lookup(ctx context.Context, fingerprint string) *models.CacheEntry {
	entry, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		c.errs.Add(1)
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("cache lookup failed, computing", map[string]interface{}{
			"fingerprint": fingerprint,
			"error":       err,
		})
		return nil
	}
	if entry == nil || entry.Expired(c.now()) {
		return nil
	}
	return entry
}

// GetOrCompute returns a live entry or runs compute at most once per fingerprint
// across concurrent callers. cached reports whether this caller skipped computing.
//
// The computation is detached from the leader's cancellation so callers that
// gave up do not fail the ones still waiting; it is bounded by the compute timeout.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (models.Answer, bool, error) {
	if entry := c.lookup(ctx, key.Fingerprint); entry != nil {
		c.hits.Add(1)
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return entry.Answer, true, nil
	}

	led := false
	ch := c.group.DoChan(key.Fingerprint, func() (interface{}, error) {
		led = true
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()

		// another flight may have stored the answer between our miss and this run
		if entry := c.lookup(flightCtx, key.Fingerprint); entry != nil {
			return flight{answer: entry.Answer, stored: true}, nil
		}

		answer, err := compute(flightCtx)
		if err != nil {
			return nil, apperrors.NewCacheComputeError(key.Fingerprint, err)
		}
		if answer.IsReliable {
			entry := models.CacheEntry{
				Fingerprint: key.Fingerprint,
				Answer:      answer,
				CachedAt:    c.now(),
				TTL:         key.TTL.Milliseconds(),
				Entities:    key.Entities,
				Kind:        key.Kind,
			}
			if err := c.store.Set(flightCtx, entry); err != nil {
				c.errs.Add(1)
				c.logger.Warn("cache store failed", map[string]interface{}{
					"fingerprint": key.Fingerprint,
					"error":       err,
				})
			}
		}
		return flight{answer: answer}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.countFlight(led, false)
			return models.Answer{}, false, res.Err
		}
		f := res.Val.(flight)
		c.countFlight(led, f.stored)
		return f.answer, !led || f.stored, nil
	case <-ctx.Done():
		return models.Answer{}, false, ctx.Err()
	}
}

func (c *Cache) countFlight(led, stored bool) {
	switch {
	case stored:
		c.hits.Add(1)
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	case led:
		c.misses.Add(1)
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		c.shared.Add(1)
		metrics.CacheLookups.WithLabelValues("shared").Inc()
	}
}

// InvalidateEntity drops every answer that mentions ticker.
func (c *Cache) InvalidateEntity(ctx context.Context, ticker string) (int, error) {
	n, err := c.store.InvalidateEntity(ctx, strings.ToUpper(ticker))
	if err == nil && n > 0 {
		c.logger.Info("cache entries invalidated", map[string]interface{}{"ticker": ticker, "count": n})
	}
	return n, err
}

func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	return c.store.PurgeExpired(ctx, c.now())
}

func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	n, err := c.store.Len(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	return models.CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Shared:  c.shared.Load(),
		Errors:  c.errs.Load(),
		Entries: n,
	}, nil
}
