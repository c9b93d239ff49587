// Package intent decides what a financial question asks for and which tools can answer it.
package intent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"finance-agent/internal/agent/entity"
	"finance-agent/internal/common/config"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/metrics"
	"finance-agent/internal/models"
)

// Thresholds tune the local classifier. They can be swapped at runtime.
type Thresholds struct {
	ConfidenceFloor     float64
	EscalationThreshold float64
	EscalationClarity   int
}

func ThresholdsFromConfig(c config.ClassifierConfig) Thresholds {
	return Thresholds{
		ConfidenceFloor:     c.ConfidenceFloor,
		EscalationThreshold: c.EscalationThreshold,
		EscalationClarity:   c.EscalationClarity,
	}
}

// Remote is a slower, more precise classifier consulted for unclear requests.
type Remote interface {
	Classify(ctx context.Context, text string, conv *models.ConversationContext) (*RemoteResult, error)
}

type Classifier struct {
	extractor *entity.Extractor
	remote    Remote
	logger    logger.Logger

	mu         sync.RWMutex
	thresholds Thresholds
}

// New builds a classifier. remote may be nil.
func New(extractor *entity.Extractor, thresholds Thresholds, remote Remote, log logger.Logger) *Classifier {
	if extractor == nil {
		extractor = entity.New()
	}
	return &Classifier{
		extractor:  extractor,
		remote:     remote,
		logger:     log.With(map[string]interface{}{"component": "intent"}),
		thresholds: thresholds,
	}
}

func (c *Classifier) SetThresholds(t Thresholds) {
	c.mu.Lock()
	c.thresholds = t
	c.mu.Unlock()
}

func (c *Classifier) Thresholds() Thresholds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.thresholds
}

// draft is the classification before clarification rules are applied.
type draft struct {
	kind       models.IntentKind
	confidence float64
	entities   []string
	tools      []string
	params     map[string]string
	ambiguous  []models.IntentKind
	clarity    int
	source     string
	questions  []string
	forceClar  bool
	norm       string
}

type detection struct {
	greeting     bool
	capabilities bool
	screening    bool
	scores       []int
}

// Analyze classifies text. It never fails: remote problems fall back to the local result.
func (c *Classifier) Analyze(ctx context.Context, text string, conv *models.ConversationContext) models.Intent {
	th := c.Thresholds()
	local := c.analyzeLocal(ctx, text, conv)
	result := c.finalize(local, th)

	if c.remote == nil || result.Kind.Conversational() {
		return result
	}
	if result.Clarity >= th.EscalationClarity && result.Confidence >= th.EscalationThreshold {
		return result
	}

	remote, err := c.remote.Classify(ctx, text, conv)
	if err != nil {
		metrics.IntentEscalations.WithLabelValues("error").Inc()
		c.logger.Warn("remote classification failed, keeping local result", map[string]interface{}{
			"error":   err,
			"clarity": result.Clarity,
			"intent":  result.Kind,
		})
		return result
	}

	merged, ok := c.fromRemote(remote, local)
	if !ok {
		metrics.IntentEscalations.WithLabelValues("invalid").Inc()
		c.logger.Warn("remote classifier returned an unknown intent", map[string]interface{}{
			"remoteIntent": remote.Intent,
		})
		return result
	}

	metrics.IntentEscalations.WithLabelValues("ok").Inc()
	return c.finalize(merged, th)
}

func (c *Classifier) analyzeLocal(ctx context.Context, text string, conv *models.ConversationContext) draft {
	norm := normalize(text)

	var (
		entities []string
		det      detection
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		entities = c.extractor.Extract(text)
		return nil
	})
	g.Go(func() error {
		det = detect(norm)
		return nil
	})
	_ = g.Wait()

	maxScore, top := topKinds(det.scores)
	contextTickers := c.contextTickers(conv)

	d := draft{
		entities: entities,
		norm:     norm,
		source:   models.IntentSourceLocal,
		clarity:  clarity(norm, len(entities), maxScore > 0, len(contextTickers)),
	}

	if len(entities) == 0 && det.greeting {
		d.kind, d.confidence = models.IntentGreeting, 0.95
		return d
	}
	if len(entities) == 0 && det.capabilities && maxScore == 0 {
		d.kind, d.confidence = models.IntentCapabilities, 0.9
		return d
	}
	if len(entities) == 0 && det.screening {
		d.kind, d.confidence = models.IntentScreening, 0.85
		d.params = extractParameters(norm, d.kind)
		d.tools = ToolsFor(d.kind)
		return d
	}

	reused := false
	if len(entities) == 0 && len(contextTickers) > 0 && (maxScore == 0 || anyRequiresEntity(top)) {
		d.entities = contextTickers
		reused = true
	}

	switch {
	case maxScore == 0 && len(d.entities) > 0:
		d.kind, d.confidence = models.IntentStockPrice, 0.8
	case maxScore == 0:
		d.kind, d.confidence = models.IntentGeneral, 0.5
	default:
		candidates := mostSpecific(top, len(d.entities) > 0)
		d.kind = candidates[0]
		d.confidence = confidenceOf(d.kind)
		if len(candidates) > 1 {
			if len(d.entities) > 1 && allRequireEntity(candidates) {
				d.kind = models.IntentComparativeAnalysis
			} else {
				d.ambiguous = candidates
				d.confidence *= 0.6
			}
		}
	}

	if len(d.entities) > 1 && d.kind.RequiresEntity() {
		d.kind = models.IntentComparativeAnalysis
	}
	if reused {
		d.confidence = min(d.confidence+0.05, 0.99)
	}

	d.params = extractParameters(norm, d.kind)
	d.tools = ToolsFor(d.kind)
	return d
}

func (c *Classifier) contextTickers(conv *models.ConversationContext) []string {
	if conv == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, t := range conv.Tickers {
		t = entity.Normalize(t)
		if c.extractor.IsValidTicker(t) && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (c *Classifier) fromRemote(r *RemoteResult, local draft) (draft, bool) {
	kind := models.IntentKind(r.Intent)
	if !knownKind(kind) {
		return draft{}, false
	}

	var candidates []string
	candidates = append(candidates, r.Tickers...)
	for _, e := range r.Entities {
		if e.Type == "" || e.Type == "ticker" {
			candidates = append(candidates, e.Value)
		}
	}
	entities := make([]string, 0, len(candidates))
	seen := map[string]bool{}
	for _, t := range candidates {
		t = entity.Normalize(t)
		if c.extractor.IsValidTicker(t) && !seen[t] {
			seen[t] = true
			entities = append(entities, t)
		}
	}
	if len(entities) == 0 {
		entities = local.entities
	}
	if len(entities) > 1 && kind.RequiresEntity() {
		kind = models.IntentComparativeAnalysis
	}

	tools := r.SuggestedTools
	if len(tools) == 0 {
		tools = ToolsFor(kind)
	}

	params := extractParameters(local.norm, kind)
	for k, v := range r.Parameters {
		params[k] = v
	}

	conf := r.Confidence
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}

	return draft{
		kind:       kind,
		confidence: conf,
		entities:   entities,
		tools:      tools,
		params:     params,
		clarity:    local.clarity,
		source:     models.IntentSourceRemote,
		questions:  r.ClarificationQuestions,
		forceClar:  r.NeedsClarification,
		norm:       local.norm,
	}, true
}

// finalize applies the clarification rules and produces the immutable intent.
func (c *Classifier) finalize(d draft, th Thresholds) models.Intent {
	in := models.Intent{
		Kind:           d.kind,
		Confidence:     d.confidence,
		Entities:       d.entities,
		SuggestedTools: d.tools,
		Parameters:     d.params,
		Source:         d.source,
		Clarity:        d.clarity,
	}
	if in.Entities == nil {
		in.Entities = []string{}
	}
	if in.Kind.Conversational() || in.SuggestedTools == nil {
		in.SuggestedTools = []string{}
	}
	in.Summary = summarize(in.Kind, in.Entities, in.Parameters)

	questions := append([]string(nil), d.questions...)
	switch {
	case len(d.ambiguous) > 1:
		questions = append(questions, fmt.Sprintf("Do you want %s or %s?",
			describe(d.ambiguous[0]), describe(d.ambiguous[1])))
	case in.Kind.RequiresEntity() && len(in.Entities) == 0:
		questions = append(questions, "Which company or ticker symbol are you asking about?")
	case !in.Kind.Conversational() && in.Confidence < th.ConfidenceFloor:
		questions = append(questions, "Could you say a bit more about what you would like to know?")
	}

	if len(questions) > 0 || d.forceClar {
		in.NeedsClarification = true
		if len(questions) == 0 {
			questions = append(questions, "Could you rephrase your question?")
		}
		in.ClarificationQuestions = questions
	}
	return in
}

func detect(norm string) detection {
	det := detection{scores: make([]int, len(patterns))}
	for i, p := range patterns {
		det.scores[i] = countMatches(norm, p.keywords)
	}

	det.screening = countMatches(norm, screeningPhrases) > 0
	det.capabilities = countMatches(norm, capabilityPhrases) > 0

	ws := words(norm)
	greetings := 0
	det.greeting = len(ws) > 0
	for _, w := range ws {
		switch {
		case greetingWords[w]:
			greetings++
		case greetingFiller[w]:
		default:
			det.greeting = false
		}
	}
	det.greeting = det.greeting && greetings > 0
	return det
}

func topKinds(scores []int) (int, []models.IntentKind) {
	maxScore := 0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore == 0 {
		return 0, nil
	}
	var top []models.IntentKind
	for i, s := range scores {
		if s == maxScore {
			top = append(top, patterns[i].kind)
		}
	}
	return maxScore, top
}

// mostSpecific keeps the entity-qualified kinds when the request names entities.
func mostSpecific(kinds []models.IntentKind, hasEntities bool) []models.IntentKind {
	if !hasEntities || len(kinds) < 2 {
		return kinds
	}
	var specific []models.IntentKind
	for _, k := range kinds {
		if k.RequiresEntity() {
			specific = append(specific, k)
		}
	}
	if len(specific) == 0 {
		return kinds
	}
	return specific
}

func anyRequiresEntity(kinds []models.IntentKind) bool {
	for _, k := range kinds {
		if k.RequiresEntity() {
			return true
		}
	}
	return false
}

func allRequireEntity(kinds []models.IntentKind) bool {
	for _, k := range kinds {
		if !k.RequiresEntity() {
			return false
		}
	}
	return true
}

func confidenceOf(kind models.IntentKind) float64 {
	for _, p := range patterns {
		if p.kind == kind {
			return p.confidence
		}
	}
	return 0.7
}

func knownKind(kind models.IntentKind) bool {
	switch kind {
	case models.IntentGreeting, models.IntentCapabilities, models.IntentScreening, models.IntentGeneral:
		return true
	}
	for _, p := range patterns {
		if p.kind == kind {
			return true
		}
	}
	return false
}

func describe(kind models.IntentKind) string {
	return strings.ReplaceAll(string(kind), "_", " ")
}

func summarize(kind models.IntentKind, entities []string, params map[string]string) string {
	switch kind {
	case models.IntentGreeting:
		return "Greeting or thanks"
	case models.IntentCapabilities:
		return "Question about what the assistant can do"
	case models.IntentMarketOverview:
		return "User wants a general market overview"
	case models.IntentGeneral:
		return "General financial question"
	case models.IntentScreening:
		s := "User wants a list of candidate stocks"
		if c := params["criteria"]; c != "" {
			s += " (" + c + ")"
		}
		if sec := params["sector"]; sec != "" {
			s += " in " + sec
		}
		return s
	}

	target := "an unspecified company"
	if len(entities) > 0 {
		target = strings.Join(entities, ", ")
	}
	if tmpl, ok := summaries[kind]; ok {
		return "User wants " + fmt.Sprintf(tmpl, target)
	}
	return "Analysis of " + target
}
