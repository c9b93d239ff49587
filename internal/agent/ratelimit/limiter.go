// Package ratelimit implements per-caller sliding-window quotas for each capability class.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finance-agent/internal/common/config"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/metrics"
	"finance-agent/internal/models"
)

// Decision is the verdict for one (caller, class) pair.
type Decision struct {
	Allowed   bool          `json:"allowed"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"resetIn"`
	Limit     int           `json:"limit"`
	Class     string        `json:"class"`
}

// Class is the ceiling of one capability class.
type Class struct {
	Requests int
	Window   time.Duration
}

// WindowState describes a window after pruning.
type WindowState struct {
	Count  int
	Oldest time.Time // zero when Count is 0
	Added  bool
}

// Store keeps the timestamps of each window.
type Store interface {
	// Peek prunes expired entries and reports the window without recording.
	Peek(ctx context.Context, key string, now time.Time, window time.Duration) (WindowState, error)
	// Add prunes, then appends now only if fewer than limit entries remain. It is atomic per key.
	Add(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (WindowState, error)
	// Sweep drops windows idle for longer than maxWindow.
	Sweep(ctx context.Context, now time.Time, maxWindow time.Duration) (int, error)
}

type Limiter struct {
	store  Store
	prefix string
	logger logger.Logger
	now    func() time.Time

	mu      sync.RWMutex
	classes map[string]Class
}

func ClassesFromConfig(limits map[string]config.RateLimitClass) map[string]Class {
	classes := make(map[string]Class, len(limits))
	for name, l := range limits {
		classes[name] = Class{Requests: l.Requests, Window: config.GetDuration(l.Window)}
	}
	return classes
}

func New(store Store, classes map[string]Class, prefix string, log logger.Logger) *Limiter {
	return &Limiter{
		store:   store,
		prefix:  prefix,
		logger:  log.With(map[string]interface{}{"component": "ratelimit"}),
		now:     time.Now,
		classes: classes,
	}
}

// SetClasses replaces the class table, e.g. after a config reload.
func (l *Limiter) SetClasses(classes map[string]Class) {
	l.mu.Lock()
	l.classes = classes
	l.mu.Unlock()
}

func (l *Limiter) class(name string) (string, Class) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if c, ok := l.classes[name]; ok {
		return name, c
	}
	if c, ok := l.classes[models.CostClassDefault]; ok {
		return models.CostClassDefault, c
	}
	return models.CostClassDefault, Class{Requests: 60, Window: time.Minute}
}

func (l *Limiter) key(caller, class string) string {
	return fmt.Sprintf("%s%s:%s", l.prefix, caller, class)
}

// Check reports the caller's quota without counting as usage.
func (l *Limiter) Check(ctx context.Context, caller, limitClass string) (Decision, error) {
	name, c := l.class(limitClass)
	now := l.now()

	state, err := l.store.Peek(ctx, l.key(caller, name), now, c.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check: %w", err)
	}

	d := decide(name, c, state, now, state.Count < c.Requests)
	metrics.RateLimitDecisions.WithLabelValues(name, "check").Inc()
	return d, nil
}

// Record counts one call. It refuses, without recording, when the window is full.
func (l *Limiter) Record(ctx context.Context, caller, limitClass string) (Decision, error) {
	name, c := l.class(limitClass)
	now := l.now()

	state, err := l.store.Add(ctx, l.key(caller, name), now, c.Window, c.Requests)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit record: %w", err)
	}

	d := decide(name, c, state, now, state.Added)
	if d.Allowed {
		metrics.RateLimitDecisions.WithLabelValues(name, "allowed").Inc()
	} else {
		metrics.RateLimitDecisions.WithLabelValues(name, "rejected").Inc()
		l.logger.Debug("rate limit exceeded", map[string]interface{}{
			"caller":  caller,
			"class":   name,
			"resetIn": d.ResetIn.String(),
		})
	}
	return d, nil
}

// Sweep removes idle windows from the store.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	l.mu.RLock()
	var longest time.Duration
	for _, c := range l.classes {
		if c.Window > longest {
			longest = c.Window
		}
	}
	l.mu.RUnlock()
	if longest == 0 {
		longest = time.Minute
	}
	return l.store.Sweep(ctx, l.now(), longest)
}

func decide(name string, c Class, state WindowState, now time.Time, allowed bool) Decision {
	remaining := c.Requests - state.Count
	if remaining < 0 {
		remaining = 0
	}
	var resetIn time.Duration
	if state.Count > 0 && !state.Oldest.IsZero() {
		resetIn = state.Oldest.Add(c.Window).Sub(now)
		if resetIn < 0 {
			resetIn = 0
		}
	}
	return Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetIn:   resetIn,
		Limit:     c.Requests,
		Class:     name,
	}
}
