// Package orchestrator runs the tools an intent suggests, concurrently and
// under per-tool deadlines, and folds their results into one outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"finance-agent/internal/agent/ratelimit"
	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/metrics"
	"finance-agent/internal/common/observability"
	"finance-agent/internal/models"
)

// Gate meters tool calls per caller and cost class.
type Gate interface {
	Record(ctx context.Context, caller, limitClass string) (ratelimit.Decision, error)
}

type PayloadValidator interface {
	ValidatePayload(tool string, payload map[string]interface{}) error
}

type Options struct {
	MaxConcurrent  int
	DefaultTimeout time.Duration
}

type Orchestrator struct {
	registry  *Registry
	gate      Gate
	validator PayloadValidator
	obs       *observability.Observability
	logger    logger.Logger
	opts      Options
}

func New(registry *Registry, opts Options, log logger.Logger) *Orchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 5 * time.Second
	}
	return &Orchestrator{
		registry: registry,
		opts:     opts,
		logger:   log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

func (o *Orchestrator) WithGate(g Gate) *Orchestrator {
	o.gate = g
	return o
}

func (o *Orchestrator) WithValidator(v PayloadValidator) *Orchestrator {
	o.validator = v
	return o
}

func (o *Orchestrator) WithObservability(obs *observability.Observability) *Orchestrator {
	o.obs = obs
	return o
}

// Run invokes the intent's suggested tools and always returns an outcome.
// Tools are admitted in suggestion order; once ctx is done the rest are
// reported as timed out without being started.
func (o *Orchestrator) Run(ctx context.Context, intent models.Intent) models.Outcome {
	var outcome models.Outcome

	planned := make([]models.ToolDescriptor, 0, len(intent.SuggestedTools))
	seen := make(map[string]bool, len(intent.SuggestedTools))
	for _, name := range intent.SuggestedTools {
		if seen[name] {
			continue
		}
		seen[name] = true
		d, ok := o.registry.Lookup(name)
		if !ok {
			o.logger.Warn("dropping unknown tool", map[string]interface{}{
				"intent": string(intent.Kind),
				"error":  describe(apperrors.NewUnknownToolError(name)),
			})
			outcome.Dropped = append(outcome.Dropped, name)
			continue
		}
		planned = append(planned, d)
	}

	params := models.ToolParams{
		Entities:   intent.Entities,
		Parameters: intent.Parameters,
		Kind:       intent.Kind,
	}

	results := make([]models.ToolResult, len(planned))
	done := make(chan int, len(planned))
	slots := make(chan struct{}, o.opts.MaxConcurrent)
	launched := 0

	for i, d := range planned {
		if !o.admit(ctx, slots) {
			for j := i; j < len(planned); j++ {
				results[j] = models.ToolResult{
					Tool:   planned[j].Name,
					Status: models.ToolTimedOut,
					Error:  fmt.Sprintf("not started: %v", ctx.Err()),
				}
				metrics.ToolInvocations.WithLabelValues(planned[j].Name, string(models.ToolTimedOut)).Inc()
			}
			break
		}

		launched++
		go func(i int, d models.ToolDescriptor) {
			metrics.ToolsActive.Inc()
			defer func() {
				metrics.ToolsActive.Dec()
				<-slots
				done <- i
			}()
			results[i] = o.runTool(ctx, d, params)
		}(i, d)
	}

	for k := 0; k < launched; k++ {
		<-done
	}

	for _, r := range results {
		switch r.Status {
		case models.ToolSuccess:
			outcome.Succeeded = append(outcome.Succeeded, r)
		case models.ToolTimedOut:
			outcome.TimedOut = append(outcome.TimedOut, r)
		default:
			outcome.Failed = append(outcome.Failed, r)
		}
	}
	outcome.IsReliable = len(outcome.Failed) == 0 && len(outcome.TimedOut) == 0

	if !outcome.IsReliable {
		o.logger.Info("orchestration degraded", map[string]interface{}{
			"intent":   string(intent.Kind),
			"degraded": outcome.Degraded(),
		})
	}
	return outcome
}

// admit blocks for a free slot and reports false once ctx is done.
func (o *Orchestrator) admit(ctx context.Context, slots chan struct{}) bool {
	select {
	case slots <- struct{}{}:
		if ctx.Err() != nil {
			<-slots
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

type invocation struct {
	payload map[string]interface{}
	err     error
}

// runTool returns as soon as the tool finishes or its deadline passes; a tool
// that ignores cancellation is left to finish on its own.
func (o *Orchestrator) runTool(ctx context.Context, d models.ToolDescriptor, params models.ToolParams) models.ToolResult {
	start := time.Now()
	ctx, span := o.obs.StartSpan(ctx, "tool."+d.Name,
		attribute.String("tool.name", d.Name),
		attribute.String("tool.cost_class", d.CostClass),
	)
	defer span.End()

	result := o.invoke(ctx, d, params)
	result.ElapsedMs = time.Since(start).Milliseconds()

	metrics.ToolInvocations.WithLabelValues(d.Name, string(result.Status)).Inc()
	metrics.ToolDuration.WithLabelValues(d.Name).Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("tool.status", string(result.Status)))
	if result.Status != models.ToolSuccess {
		span.SetStatus(codes.Error, result.Error)
		o.logger.Warn("tool did not succeed", map[string]interface{}{
			"tool":      d.Name,
			"status":    string(result.Status),
			"error":     result.Error,
			"elapsedMs": result.ElapsedMs,
		})
	}
	return result
}

func (o *Orchestrator) invoke(ctx context.Context, d models.ToolDescriptor, params models.ToolParams) models.ToolResult {
	result := models.ToolResult{Tool: d.Name}

	if o.gate != nil {
		caller := models.CallerFrom(ctx)
		decision, err := o.gate.Record(ctx, caller, d.CostClass)
		switch {
		case err != nil:
			o.logger.Warn("cost gate unavailable, allowing tool", map[string]interface{}{"tool": d.Name, "error": err})
		case !decision.Allowed:
			result.Status = models.ToolFailure
			result.Error = describe(apperrors.NewRateLimitExceededError(decision.Class, decision.Limit, decision.ResetIn))
			return result
		}
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = o.opts.DefaultTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- invocation{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		payload, err := d.Invoke(tctx, params)
		ch <- invocation{payload: payload, err: err}
	}()

	select {
	case inv := <-ch:
		if inv.err != nil {
			if errors.Is(inv.err, context.DeadlineExceeded) || tctx.Err() != nil {
				result.Status = models.ToolTimedOut
				result.Error = describe(apperrors.NewToolTimeoutError(d.Name, timeout))
				return result
			}
			result.Status = models.ToolFailure
			result.Error = describe(apperrors.NewToolError(d.Name, inv.err))
			return result
		}
		if o.validator != nil {
			if err := o.validator.ValidatePayload(d.Name, inv.payload); err != nil {
				result.Status = models.ToolFailure
				result.Error = err.Error()
				return result
			}
		}
		result.Status = models.ToolSuccess
		result.Payload = inv.payload
		return result
	case <-tctx.Done():
		result.Status = models.ToolTimedOut
		result.Error = describe(apperrors.NewToolTimeoutError(d.Name, timeout))
		return result
	}
}

func describe(e *apperrors.StandardError) string {
	return string(e.Code) + ": " + e.Details
}
