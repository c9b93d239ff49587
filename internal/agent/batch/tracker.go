// internal/agent/batch/tracker.go
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"finance-agent/internal/agent/entity"
	"finance-agent/internal/agent/ratelimit"
	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/metrics"
	"finance-agent/internal/models"
)

// DefaultQuestion is asked for every entity when the request carries none.
const DefaultQuestion = "Analyse"

// Runner answers one request through the single-entity pipeline.
type Runner interface {
	Process(ctx context.Context, req models.AskRequest) (models.AskResponse, error)
}

type Gate interface {
	Record(ctx context.Context, caller, limitClass string) (ratelimit.Decision, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type Options struct {
	MaxEntities int
	Retention   time.Duration
	MaxJobs     int
	LimitClass  string
}

type job struct {
	mu    sync.Mutex
	state models.BatchJob
}

func (j *job) snapshot() models.BatchJob {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.state
	s.Entities = append([]string(nil), j.state.Entities...)
	s.Results = append([]models.BatchItemResult(nil), j.state.Results...)
	if j.state.CompletedAt != nil {
		at := *j.state.CompletedAt
		s.CompletedAt = &at
	}
	return s
}

// Tracker runs batch jobs in the background and serves consistent snapshots.
type Tracker struct {
	runner   Runner
	opts     Options
	logger   logger.Logger
	gate     Gate
	notifier Notifier
	now      func() time.Time

	mu   sync.RWMutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTracker(runner Runner, opts Options, log logger.Logger) *Tracker {
	if opts.MaxEntities <= 0 {
		opts.MaxEntities = 50
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 1000
	}
	if opts.LimitClass == "" {
		opts.LimitClass = models.CostClassBatch
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		runner: runner,
		opts:   opts,
		logger: log,
		now:    time.Now,
		jobs:   make(map[string]*job),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (t *Tracker) WithGate(g Gate) *Tracker {
	t.gate = g
	return t
}

func (t *Tracker) WithNotifier(n Notifier) *Tracker {
	t.notifier = n
	return t
}

// Start validates the request, registers the job and returns before any entity is processed.
func (t *Tracker) Start(ctx context.Context, req models.BatchRequest) (models.BatchStartResponse, error) {
	entities, err := t.validate(req.Entities)
	if err != nil {
		return models.BatchStartResponse{}, err
	}

	caller := req.CallerID
	if caller == "" {
		caller = models.CallerFrom(ctx)
	}
	if t.gate != nil {
		decision, err := t.gate.Record(ctx, caller, t.opts.LimitClass)
		if err != nil {
			t.logger.Warn("Batch gate unavailable, admitting job", map[string]interface{}{
				"caller": caller,
				"error":  err.Error(),
			})
		} else if !decision.Allowed {
			return models.BatchStartResponse{}, apperrors.NewRateLimitExceededError(decision.Class, decision.Limit, decision.ResetIn)
		}
	}

	question := req.Question
	if question == "" {
		question = DefaultQuestion
	}

	j := &job{state: models.BatchJob{
		ID:        uuid.NewString(),
		Status:    models.BatchProcessing,
		Entities:  entities,
		Question:  question,
		CallerID:  caller,
		Total:     len(entities),
		Results:   []models.BatchItemResult{},
		Notify:    req.Notify,
		StartedAt: t.now(),
	}}

	t.mu.Lock()
	t.jobs[j.state.ID] = j
	t.mu.Unlock()

	metrics.BatchJobsActive.Inc()
	t.logger.Info("Batch job started", map[string]interface{}{
		"jobId":    j.state.ID,
		"caller":   caller,
		"entities": len(entities),
	})

	t.wg.Add(1)
	go t.work(j)

	return models.BatchStartResponse{JobID: j.state.ID, TotalCount: len(entities)}, nil
}

func (t *Tracker) validate(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, apperrors.NewValidationError("entities must not be empty")
	}
	if len(raw) > t.opts.MaxEntities {
		return nil, apperrors.NewValidationError(fmt.Sprintf("at most %d entities per batch, got %d", t.opts.MaxEntities, len(raw)))
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		ticker := entity.Normalize(r)
		if !entity.IsValidTicker(ticker) {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid ticker %q", r))
		}
		if !seen[ticker] {
			seen[ticker] = true
			out = append(out, ticker)
		}
	}
	return out, nil
}

// Status returns a snapshot of the job.
func (t *Tracker) Status(jobID string) (models.BatchJob, error) {
	t.mu.RLock()
	j, ok := t.jobs[jobID]
	t.mu.RUnlock()
	if !ok {
		return models.BatchJob{}, apperrors.NewJobNotFoundError(jobID)
	}
	return j.snapshot(), nil
}

func (t *Tracker) work(j *job) {
	defer t.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Batch worker panicked", map[string]interface{}{
				"jobId": j.state.ID,
				"panic": fmt.Sprint(r),
			})
			t.finish(j, models.BatchFailed, fmt.Sprintf("batch worker crashed: %v", r))
		}
	}()

	j.mu.Lock()
	entities := j.state.Entities
	question := j.state.Question
	caller := j.state.CallerID
	j.mu.Unlock()

	ctx := models.WithCaller(t.ctx, caller)
	for _, ticker := range entities {
		if ctx.Err() != nil {
			t.finish(j, models.BatchFailed, "batch interrupted by shutdown")
			return
		}
		t.record(j, t.processOne(ctx, ticker, question, caller))
	}
	t.finish(j, models.BatchCompleted, "")
}

func (t *Tracker) processOne(ctx context.Context, ticker, question, caller string) models.BatchItemResult {
	resp, err := t.runner.Process(ctx, models.AskRequest{
		Text:     question + " " + ticker,
		CallerID: caller,
	})
	if err != nil {
		msg := err.Error()
		if se, ok := apperrors.As(err); ok {
			msg = se.Message
		}
		return models.BatchItemResult{Entity: ticker, Success: false, Error: msg}
	}
	return models.BatchItemResult{
		Entity:       ticker,
		Success:      true,
		Answer:       resp.Answer,
		Intent:       models.IntentKind(resp.Intent),
		IsReliable:   resp.IsReliable,
		ProviderUsed: resp.ProviderUsed,
		Cached:       resp.Cached,
	}
}

func (t *Tracker) record(j *job, item models.BatchItemResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state.Results = append(j.state.Results, item)
	if item.Success {
		j.state.Completed++
	} else {
		j.state.Failed++
	}
}

func (t *Tracker) finish(j *job, status models.BatchStatus, errMsg string) {
	j.mu.Lock()
	if j.state.Status != models.BatchProcessing {
		j.mu.Unlock()
		return
	}
	at := t.now()
	j.state.Status = status
	j.state.Error = errMsg
	j.state.CompletedAt = &at
	j.mu.Unlock()

	metrics.BatchJobsActive.Dec()
	metrics.BatchJobsFinished.WithLabelValues(string(status)).Inc()

	snap := j.snapshot()
	t.logger.Info("Batch job finished", map[string]interface{}{
		"jobId":     snap.ID,
		"status":    snap.Status,
		"completed": snap.Completed,
		"failed":    snap.Failed,
	})

	if snap.Notify && t.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.notifier.Notify(ctx, NotificationFor(snap)); err != nil {
			t.logger.Warn("Batch notification failed", map[string]interface{}{
				"jobId": snap.ID,
				"error": err.Error(),
			})
		}
	}
}

// Sweep drops finished jobs older than the retention window, then the oldest
// finished jobs while the tracker holds more than MaxJobs.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	var finished []models.BatchJob
	for id, j := range t.jobs {
		s := j.snapshot()
		if !s.Finished() {
			continue
		}
		if s.CompletedAt != nil && now.Sub(*s.CompletedAt) >= t.opts.Retention {
			delete(t.jobs, id)
			removed++
			continue
		}
		finished = append(finished, s)
	}

	if excess := len(t.jobs) - t.opts.MaxJobs; excess > 0 {
		sort.Slice(finished, func(a, b int) bool {
			return finished[a].CompletedAt.Before(*finished[b].CompletedAt)
		})
		for i := 0; i < excess && i < len(finished); i++ {
			delete(t.jobs, finished[i].ID)
			removed++
		}
	}

	if removed > 0 {
		t.logger.Debug("Swept batch jobs", map[string]interface{}{"removed": removed, "remaining": len(t.jobs)})
	}
	return removed
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

// Shutdown stops the workers; jobs still processing end as failed.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.cancel()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
