// internal/models/intent.go
package models

// IntentKind is the tagged variant produced by the classifier.
type IntentKind string

const (
	IntentGreeting              IntentKind = "greeting"
	IntentCapabilities          IntentKind = "capabilities"
	IntentStockPrice            IntentKind = "stock_price"
	IntentFundamentals          IntentKind = "fundamentals"
	IntentTechnicalAnalysis     IntentKind = "technical_analysis"
	IntentNews                  IntentKind = "news"
	IntentComprehensiveAnalysis IntentKind = "comprehensive_analysis"
	IntentComparativeAnalysis   IntentKind = "comparative_analysis"
	IntentEarnings              IntentKind = "earnings"
	IntentPortfolio             IntentKind = "portfolio"
	IntentMarketOverview        IntentKind = "market_overview"
	IntentRecommendation        IntentKind = "recommendation"
	IntentScreening             IntentKind = "screening"
	IntentGeneral               IntentKind = "general"
)

// Conversational intents are answered without any tool fan-out.
func (k IntentKind) Conversational() bool {
	return k == IntentGreeting || k == IntentCapabilities
}

// RequiresEntity reports whether the kind is meaningless without at least one ticker.
func (k IntentKind) RequiresEntity() bool {
	switch k {
	case IntentStockPrice, IntentFundamentals, IntentTechnicalAnalysis, IntentNews,
		IntentComprehensiveAnalysis, IntentComparativeAnalysis, IntentEarnings, IntentRecommendation,
		IntentPortfolio:
		return true
	}
	return false
}

const (
	IntentSourceLocal  = "local"
	IntentSourceRemote = "remote"
)

// Intent is the immutable classification of one request.
type Intent struct {
	Kind                   IntentKind        `json:"kind"`
	Confidence             float64           `json:"confidence"`
	Entities               []string          `json:"entities"`
	SuggestedTools         []string          `json:"suggestedTools"`
	Parameters             map[string]string `json:"parameters,omitempty"`
	NeedsClarification     bool              `json:"needsClarification"`
	ClarificationQuestions []string          `json:"clarificationQuestions,omitempty"`
	Summary                string            `json:"summary"`
	Source                 string            `json:"source"`
	Clarity                int               `json:"clarity"`
}

// Param returns a parameter or def when it is absent.
func (i Intent) Param(key, def string) string {
	if v, ok := i.Parameters[key]; ok && v != "" {
		return v
	}
	return def
}
