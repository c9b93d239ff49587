package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-agent/internal/agent/ratelimit"
	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/models"
)

type runnerFunc func(ctx context.Context, req models.AskRequest) (models.AskResponse, error)

func (f runnerFunc) Process(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
	return f(ctx, req)
}

func answering(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
	return models.AskResponse{
		Answer:       "analysis for " + req.Text,
		Intent:       string(models.IntentComprehensiveAnalysis),
		IsReliable:   true,
		ProviderUsed: "primary",
	}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// newTracker waits for background workers before the test completes.
func newTracker(t *testing.T, runner Runner, opts Options) *Tracker {
	t.Helper()
	tr := NewTracker(runner, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = tr.Shutdown(ctx)
	})
	return tr
}

var tenTickers = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "NFLX", "AMD", "INTC"}

func waitFinished(t *testing.T, tr *Tracker, id string) models.BatchJob {
	t.Helper()
	var job models.BatchJob
	require.Eventually(t, func() bool {
		var err error
		job, err = tr.Status(id)
		return err == nil && job.Finished()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

// ==========================
// Start and Status
// ==========================

func TestStart_ReturnsBeforeProcessing(t *testing.T) {
	release := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return models.AskResponse{}, ctx.Err()
		}
		return answering(ctx, req)
	})
	tr := newTracker(t, runner, Options{})

	started, err := tr.Start(context.Background(), models.BatchRequest{Entities: tenTickers})
	require.NoError(t, err)
	assert.NotEmpty(t, started.JobID)
	assert.Equal(t, 10, started.TotalCount)

	job, err := tr.Status(started.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchProcessing, job.Status)
	assert.Less(t, job.Completed, job.Total)
	assert.Nil(t, job.CompletedAt)

	close(release)
	job = waitFinished(t, tr, started.JobID)
	assert.Equal(t, models.BatchCompleted, job.Status)
	assert.Equal(t, 10, job.Completed)
	require.Len(t, job.Results, 10)
	for i, r := range job.Results {
		assert.Equal(t, tenTickers[i], r.Entity)
		assert.True(t, r.Success)
	}
	assert.NotNil(t, job.CompletedAt)
}

func TestStart_NormalizesAndDeduplicates(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	runner := runnerFunc(func(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
		mu.Lock()
		texts = append(texts, req.Text)
		mu.Unlock()
		assert.Equal(t, "desk-7", models.CallerFrom(ctx))
		return answering(ctx, req)
	})
	tr := newTracker(t, runner, Options{})

	started, err := tr.Start(context.Background(), models.BatchRequest{
		Entities: []string{" aapl", "$MSFT", "AAPL"},
		CallerID: "desk-7",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, started.TotalCount)

	job := waitFinished(t, tr, started.JobID)
	assert.Equal(t, []string{"AAPL", "MSFT"}, job.Entities)
	mu.Lock()
	assert.Equal(t, []string{"Analyse AAPL", "Analyse MSFT"}, texts)
	mu.Unlock()
}

func TestStart_Validation(t *testing.T) {
	tr := newTracker(t, runnerFunc(answering), Options{MaxEntities: 3})

	tests := []struct {
		name     string
		entities []string
	}{
		{"empty", nil},
		{"too many", []string{"AAPL", "MSFT", "NVDA", "AMD"}},
		{"deny-listed", []string{"AAPL", "USD"}},
		{"bad syntax", []string{"123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Start(context.Background(), models.BatchRequest{Entities: tt.entities})
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
		})
	}
	assert.Zero(t, tr.Len())
}

func TestStatus_UnknownJob(t *testing.T) {
	tr := newTracker(t, runnerFunc(answering), Options{})
	_, err := tr.Status("missing")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeJobNotFound))
}

func TestStart_GateRejects(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), map[string]ratelimit.Class{
		models.CostClassBatch: {Requests: 1, Window: time.Minute},
	}, "test:", logger.NewTestLogger(t))
	tr := newTracker(t, runnerFunc(answering), Options{}).WithGate(limiter)

	_, err := tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL"}, CallerID: "c1"})
	require.NoError(t, err)

	_, err = tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL"}, CallerID: "c1"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRateLimitExceeded))
}

// ==========================
// Failures
// ==========================

func TestWorker_ItemFailuresAreCounted(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
		if req.Text == "Analyse MSFT" {
			return models.AskResponse{}, apperrors.NewProviderError("primary: down", errors.New("down"))
		}
		return answering(ctx, req)
	})
	tr := newTracker(t, runner, Options{})

	started, err := tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL", "MSFT", "NVDA"}})
	require.NoError(t, err)

	job := waitFinished(t, tr, started.JobID)
	assert.Equal(t, models.BatchCompleted, job.Status)
	assert.Equal(t, 2, job.Completed)
	assert.Equal(t, 1, job.Failed)
	assert.False(t, job.Results[1].Success)
	assert.Equal(t, apperrors.DegradedMessage, job.Results[1].Error)
}

func TestWorker_PanicFailsJob(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
		if req.Text == "Analyse MSFT" {
			panic("boom")
		}
		return answering(ctx, req)
	})
	tr := newTracker(t, runner, Options{})

	started, err := tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL", "MSFT", "NVDA"}})
	require.NoError(t, err)

	job := waitFinished(t, tr, started.JobID)
	assert.Equal(t, models.BatchFailed, job.Status)
	assert.Contains(t, job.Error, "boom")
	assert.Equal(t, 1, job.Completed)
	assert.NotNil(t, job.CompletedAt)
}

func TestShutdown_FailsProcessingJobs(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
		<-ctx.Done()
		return models.AskResponse{}, ctx.Err()
	})
	tr := newTracker(t, runner, Options{})

	started, err := tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL", "MSFT"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Shutdown(ctx))

	job, err := tr.Status(started.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchFailed, job.Status)
	assert.Equal(t, "batch interrupted by shutdown", job.Error)
	assert.Equal(t, 1, job.Failed)
}

// ==========================
// Notifications
// ==========================

func TestFinish_NotifiesWhenRequested(t *testing.T) {
	n := &recordingNotifier{}
	tr := newTracker(t, runnerFunc(answering), Options{}).WithNotifier(n)

	quiet, err := tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL"}})
	require.NoError(t, err)
	waitFinished(t, tr, quiet.JobID)

	loud, err := tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL", "MSFT"}, Notify: true})
	require.NoError(t, err)
	waitFinished(t, tr, loud.JobID)

	require.Eventually(t, func() bool { return n.count() == 1 }, time.Second, 5*time.Millisecond)
	n.mu.Lock()
	msg := n.sent[0]
	n.mu.Unlock()
	assert.Equal(t, loud.JobID, msg.JobID)
	assert.Equal(t, "Batch analysis completed", msg.Subject)
	assert.Contains(t, msg.Body, "2 of 2 entities analysed")
	assert.Equal(t, "completed", msg.Attrs["status"])
}

func TestFinish_NotificationErrorIsSwallowed(t *testing.T) {
	n := &recordingNotifier{err: errors.New("sns down")}
	tr := newTracker(t, runnerFunc(answering), Options{}).WithNotifier(n)

	started, err := tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL"}, Notify: true})
	require.NoError(t, err)
	job := waitFinished(t, tr, started.JobID)
	assert.Equal(t, models.BatchCompleted, job.Status)
}

// ==========================
// Sweep
// ==========================

func TestSweep_RetentionAndCap(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	tr := newTracker(t, runnerFunc(answering), Options{Retention: time.Hour, MaxJobs: 2})
	tr.now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }

	var ids []string
	for i := 0; i < 3; i++ {
		started, err := tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL"}})
		require.NoError(t, err)
		waitFinished(t, tr, started.JobID)
		ids = append(ids, started.JobID)
	}

	assert.Equal(t, 1, tr.Sweep(base.Add(time.Minute)))
	assert.Equal(t, 2, tr.Len())
	_, err := tr.Status(ids[0])
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeJobNotFound))

	assert.Equal(t, 2, tr.Sweep(base.Add(2*time.Hour)))
	assert.Zero(t, tr.Len())
}

func TestSweep_KeepsProcessingJobs(t *testing.T) {
	release := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
		<-release
		return answering(ctx, req)
	})
	tr := newTracker(t, runner, Options{Retention: time.Millisecond, MaxJobs: 1})
	t.Cleanup(func() { close(release) })

	for i := 0; i < 2; i++ {
		_, err := tr.Start(context.Background(), models.BatchRequest{Entities: []string{"AAPL"}})
		require.NoError(t, err)
	}
	assert.Zero(t, tr.Sweep(time.Now().Add(time.Hour)))
	assert.Equal(t, 2, tr.Len())
}
