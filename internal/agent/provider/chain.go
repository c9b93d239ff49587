package provider

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/observability"
	"finance-agent/internal/models"
)

// Chain tries providers in order, at most maxAttempts of them.
type Chain struct {
	providers   []Provider
	maxAttempts int
	recorder    UsageRecorder
	obs         *observability.Observability
	logger      logger.Logger
	now         func() time.Time
}

func NewChain(providers []Provider, maxAttempts int, recorder UsageRecorder, log logger.Logger) *Chain {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	if recorder == nil {
		recorder = PrometheusRecorder{}
	}
	return &Chain{
		providers:   providers,
		maxAttempts: maxAttempts,
		recorder:    recorder,
		logger:      log.With(map[string]interface{}{"component": "provider-chain"}),
		now:         time.Now,
	}
}

func (c *Chain) WithObservability(obs *observability.Observability) *Chain {
	c.obs = obs
	return c
}

// Synthesize returns the first successful generation. When every attempt
// fails the error carries only a generic message for the caller.
func (c *Chain) Synthesize(ctx context.Context, question string, intent models.Intent, outcome models.Outcome) (models.Answer, error) {
	prompt := BuildPrompt(question, intent, outcome, c.logger)

	attempts := c.maxAttempts
	if attempts > len(c.providers) {
		attempts = len(c.providers)
	}

	var (
		failures []string
		lastErr  error
	)
	for i := 0; i < attempts; i++ {
		p := c.providers[i]
		resp, err := c.attempt(ctx, p, prompt, intent.Kind)
		if err == nil {
			text := resp.Text
			if !outcome.IsReliable {
				text += "\n\n" + DegradationNotice
			}
			if i > 0 {
				c.logger.Info("answer produced by fallback provider", map[string]interface{}{
					"provider": p.Name(),
					"attempt":  i + 1,
				})
			}
			return models.Answer{
				Text:         text,
				ProviderUsed: p.Name(),
				ToolsUsed:    outcome.ToolsUsed(),
				IsReliable:   outcome.IsReliable,
				Usage:        resp.Usage,
				GeneratedAt:  c.now().UTC(),
			}, nil
		}

		lastErr = err
		failures = append(failures, p.Name()+": "+err.Error())
		c.logger.Warn("provider attempt failed", map[string]interface{}{
			"provider": p.Name(),
			"attempt":  i + 1,
			"error":    err,
		})
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		failures = append(failures, "no providers configured")
	}
	return models.Answer{}, apperrors.NewProviderError(strings.Join(failures, "; "), lastErr)
}

func (c *Chain) attempt(ctx context.Context, p Provider, prompt string, kind models.IntentKind) (Response, error) {
	ctx, span := c.obs.StartSpan(ctx, "provider.generate", attribute.String("provider.name", p.Name()))
	defer span.End()

	start := c.now()
	resp, err := p.Generate(ctx, prompt)

	c.recorder.Record(ctx, UsageRecord{
		Provider:  p.Name(),
		Model:     resp.Model,
		Intent:    kind,
		Usage:     resp.Usage,
		Success:   err == nil,
		LatencyMs: c.now().Sub(start).Milliseconds(),
		At:        start.UTC(),
	})

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Response{}, err
	}
	span.SetAttributes(
		attribute.Int("provider.input_tokens", resp.Usage.InputTokens),
		attribute.Int("provider.output_tokens", resp.Usage.OutputTokens),
	)
	return resp, nil
}
