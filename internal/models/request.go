// internal/models/request.go
package models

import "context"

// ConversationContext carries what earlier turns established.
type ConversationContext struct {
	Tickers  []string `json:"tickers,omitempty"`
	History  []string `json:"history,omitempty"`
	LastKind string   `json:"lastKind,omitempty"`
}

type AskRequest struct {
	Text         string               `json:"text"`
	CallerID     string               `json:"callerId"`
	Conversation *ConversationContext `json:"conversation,omitempty"`
}

type AskResponse struct {
	Answer                 string   `json:"answer"`
	Intent                 string   `json:"intent"`
	Confidence             float64  `json:"confidence"`
	ToolsUsed              []string `json:"toolsUsed"`
	IsReliable             bool     `json:"isReliable"`
	ProviderUsed           string   `json:"providerUsed"`
	NeedsClarification     bool     `json:"needsClarification"`
	ClarificationQuestions []string `json:"clarificationQuestions,omitempty"`
	Entities               []string `json:"entities"`
	Cached                 bool     `json:"cached"`
	Cost                   float64  `json:"cost"`
	RequestID              string   `json:"requestId,omitempty"`
}

type BatchRequest struct {
	Entities []string `json:"entities"`
	Question string   `json:"question,omitempty"`
	CallerID string   `json:"callerId,omitempty"`
	Notify   bool     `json:"notify,omitempty"`
}

type BatchStartResponse struct {
	JobID      string `json:"jobId"`
	TotalCount int    `json:"totalCount"`
}

// AnonymousCaller is used when a request carries no caller id.
const AnonymousCaller = "anonymous"

type callerKey struct{}

// WithCaller stores the caller id for components deeper in the pipeline.
func WithCaller(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerKey{}, callerID)
}

// CallerFrom returns the caller id set by WithCaller, or AnonymousCaller.
func CallerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey{}).(string); ok && v != "" {
		return v
	}
	return AnonymousCaller
}
