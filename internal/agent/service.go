// Package agent glues the classifier, limiter, cache, orchestrator and
// provider chain into the single-request pipeline.
package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"finance-agent/internal/agent/cache"
	"finance-agent/internal/agent/ratelimit"
	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/metrics"
	"finance-agent/internal/common/observability"
	"finance-agent/internal/models"
)

// LimitClassGeneration is charged once per answered request.
const LimitClassGeneration = models.CostClassGeneration

type Classifier interface {
	Analyze(ctx context.Context, text string, conv *models.ConversationContext) models.Intent
}

type Limiter interface {
	Record(ctx context.Context, caller, limitClass string) (ratelimit.Decision, error)
}

type Orchestrator interface {
	Run(ctx context.Context, intent models.Intent) models.Outcome
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question string, intent models.Intent, outcome models.Outcome) (models.Answer, error)
}

type Cache interface {
	GetOrCompute(ctx context.Context, key cache.Key, compute cache.ComputeFunc) (models.Answer, bool, error)
}

type Deps struct {
	Classifier   Classifier
	Limiter      Limiter
	Cache        Cache
	TTL          cache.TTLPolicy
	Orchestrator Orchestrator
	Synthesizer  Synthesizer
}

type Service struct {
	classifier   Classifier
	limiter      Limiter
	cache        Cache
	ttl          cache.TTLPolicy
	orchestrator Orchestrator
	synthesizer  Synthesizer
	obs          *observability.Observability
	logger       logger.Logger
}

// New builds the service. Limiter and Cache are optional.
func New(d Deps, log logger.Logger) *Service {
	return &Service{
		classifier:   d.Classifier,
		limiter:      d.Limiter,
		cache:        d.Cache,
		ttl:          d.TTL,
		orchestrator: d.Orchestrator,
		synthesizer:  d.Synthesizer,
		logger:       log.With(map[string]interface{}{"component": "agent"}),
	}
}

func (s *Service) WithObservability(obs *observability.Observability) *Service {
	s.obs = obs
	return s
}

// Ask charges the caller's generation quota, then answers the request.
func (s *Service) Ask(ctx context.Context, req models.AskRequest) (models.AskResponse, error) {
	caller := req.CallerID
	if caller == "" {
		caller = models.CallerFrom(ctx)
	}
	ctx = models.WithCaller(ctx, caller)

	if s.limiter != nil {
		decision, err := s.limiter.Record(ctx, caller, LimitClassGeneration)
		if err != nil {
			s.logger.Warn("Rate limiter unavailable, admitting request", map[string]interface{}{
				"caller": caller,
				"error":  err.Error(),
			})
		} else if !decision.Allowed {
			metrics.AgentRequests.WithLabelValues("unknown", "rate_limited").Inc()
			return models.AskResponse{}, apperrors.NewRateLimitExceededError(decision.Class, decision.Limit, decision.ResetIn)
		}
	}
	return s.Process(ctx, req)
}

// Process runs the pipeline without charging quota. Batch jobs call it per entity.
func (s *Service) Process(ctx context.Context, req models.AskRequest) (resp models.AskResponse, err error) {
	start := time.Now()
	requestID := uuid.NewString()
	if req.CallerID != "" {
		ctx = models.WithCaller(ctx, req.CallerID)
	}

	ctx, span := s.obs.StartSpan(ctx, "agent.process",
		attribute.String("request.id", requestID),
		attribute.String("caller", models.CallerFrom(ctx)),
	)
	defer span.End()

	kind := "unknown"
	defer func() {
		outcome := "answered"
		switch {
		case err != nil:
			outcome = "error"
			span.RecordError(err)
		case resp.NeedsClarification:
			outcome = "clarification"
		case resp.Cached:
			outcome = "cached"
		case !resp.IsReliable:
			outcome = "degraded"
		}
		metrics.AgentRequests.WithLabelValues(kind, outcome).Inc()
		metrics.AgentRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		s.obs.RecordRequest(ctx, kind, outcome)
		s.obs.RecordRequestDuration(ctx, time.Since(start), kind)
	}()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return models.AskResponse{
			Answer:                 "What would you like to know? Mention a company or ticker, for example \"AAPL price\".",
			Intent:                 string(models.IntentGeneral),
			ToolsUsed:              []string{},
			IsReliable:             true,
			ProviderUsed:           models.ProviderNone,
			NeedsClarification:     true,
			ClarificationQuestions: []string{"Which company or ticker are you asking about?"},
			Entities:               []string{},
			RequestID:              requestID,
		}, nil
	}

	intent := s.classifier.Analyze(ctx, text, req.Conversation)
	kind = string(intent.Kind)
	span.SetAttributes(
		attribute.String("intent.kind", kind),
		attribute.Float64("intent.confidence", intent.Confidence),
	)

	base := models.AskResponse{
		Intent:                 kind,
		Confidence:             intent.Confidence,
		ToolsUsed:              []string{},
		NeedsClarification:     intent.NeedsClarification,
		ClarificationQuestions: intent.ClarificationQuestions,
		Entities:               nonNil(intent.Entities),
		ProviderUsed:           models.ProviderNone,
		IsReliable:             true,
		RequestID:              requestID,
	}

	if intent.Kind.Conversational() {
		base.Answer = cannedReply(intent.Kind, text)
		return base, nil
	}
	if intent.NeedsClarification {
		base.Answer = clarificationReply(intent)
		return base, nil
	}

	compute := func(ctx context.Context) (models.Answer, error) {
		outcome := s.orchestrator.Run(ctx, intent)
		return s.synthesizer.Synthesize(ctx, text, intent, outcome)
	}

	var (
		answer models.Answer
		cached bool
	)
	if s.cache != nil {
		answer, cached, err = s.cache.GetOrCompute(ctx, s.ttl.KeyFor(intent), compute)
	} else {
		answer, err = compute(ctx)
	}
	if err != nil {
		s.logger.Warn("Answer unavailable", map[string]interface{}{
			"requestId": requestID,
			"intent":    kind,
			"error":     err.Error(),
		})
		return models.AskResponse{}, err
	}

	base.Answer = answer.Text
	base.ToolsUsed = nonNil(answer.ToolsUsed)
	base.IsReliable = answer.IsReliable
	base.ProviderUsed = answer.ProviderUsed
	base.Cached = cached
	if !cached {
		base.Cost = answer.Usage.Cost
	}

	s.logger.Info("Request answered", map[string]interface{}{
		"requestId":  requestID,
		"intent":     kind,
		"entities":   intent.Entities,
		"tools":      base.ToolsUsed,
		"isReliable": base.IsReliable,
		"cached":     cached,
		"provider":   base.ProviderUsed,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return base, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
