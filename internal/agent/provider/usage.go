package provider

import (
	"context"
	"database/sql"
	"time"

	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/metrics"
	"finance-agent/internal/models"
)

const ledgerWriteTimeout = 2 * time.Second

// UsageRecord is one generation attempt, successful or not.
type UsageRecord struct {
	Provider  string
	Model     string
	Intent    models.IntentKind
	Usage     models.Usage
	Success   bool
	LatencyMs int64
	At        time.Time
}

type UsageRecorder interface {
	Record(ctx context.Context, rec UsageRecord)
}

// PrometheusRecorder feeds the provider counters.
type PrometheusRecorder struct{}

func (PrometheusRecorder) Record(_ context.Context, rec UsageRecord) {
	status := "success"
	if !rec.Success {
		status = "failure"
	}
	metrics.ProviderCalls.WithLabelValues(rec.Provider, status).Inc()
	metrics.ProviderTokens.WithLabelValues(rec.Provider, "input").Add(float64(rec.Usage.InputTokens))
	metrics.ProviderTokens.WithLabelValues(rec.Provider, "output").Add(float64(rec.Usage.OutputTokens))
	metrics.ProviderCost.WithLabelValues(rec.Provider).Add(rec.Usage.Cost)
}

// LedgerRecorder appends every attempt to the provider_usage table.
type LedgerRecorder struct {
	db     *sql.DB
	logger logger.Logger
}

func NewLedgerRecorder(db *sql.DB, log logger.Logger) *LedgerRecorder {
	return &LedgerRecorder{db: db, logger: log.With(map[string]interface{}{"component": "usage-ledger"})}
}

// Record survives cancellation of the request that triggered it.
func (l *LedgerRecorder) Record(ctx context.Context, rec UsageRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO provider_usage
			(provider, model, intent, input_tokens, output_tokens, cost, success, latency_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.Provider, rec.Model, string(rec.Intent),
		rec.Usage.InputTokens, rec.Usage.OutputTokens, rec.Usage.Cost,
		rec.Success, rec.LatencyMs, rec.At,
	)
	if err != nil {
		stdErr := apperrors.NewQueryExecutionFailedError(string(models.QueryTypeUsageInsert), err)
		l.logger.Warn("usage ledger write failed", map[string]interface{}{
			"provider": rec.Provider,
			"error":    stdErr.Details,
		})
	}
}

// MultiRecorder fans a record out to several recorders.
type MultiRecorder []UsageRecorder

func (m MultiRecorder) Record(ctx context.Context, rec UsageRecord) {
	for _, r := range m {
		r.Record(ctx, rec)
	}
}
