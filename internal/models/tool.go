// internal/models/tool.go
package models

import (
	"context"
	"time"
)

// Cost classes shared by tools and the rate limiter.
const (
	CostClassGeneration = "generation"
	CostClassMarketData = "market_data"
	CostClassDatabase   = "database"
	CostClassSearch     = "search"
	CostClassBatch      = "batch"
	CostClassDefault    = "default"
)

// InvokeFunc performs one tool call. It must honour ctx cancellation.
type InvokeFunc func(ctx context.Context, params ToolParams) (map[string]interface{}, error)

// ToolParams is what the orchestrator hands to every tool.
type ToolParams struct {
	Entities   []string
	Parameters map[string]string
	Kind       IntentKind
}

// Ticker returns the first entity or "".
func (p ToolParams) Ticker() string {
	if len(p.Entities) == 0 {
		return ""
	}
	return p.Entities[0]
}

type ToolDescriptor struct {
	Name      string
	Timeout   time.Duration
	CostClass string
	Invoke    InvokeFunc
}

type ToolStatus string

const (
	ToolSuccess  ToolStatus = "success"
	ToolFailure  ToolStatus = "failure"
	ToolTimedOut ToolStatus = "timed_out"
)

type ToolResult struct {
	Tool      string                 `json:"tool"`
	Status    ToolStatus             `json:"status"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ElapsedMs int64                  `json:"elapsedMs"`
}

// Outcome aggregates every tool result of one request.
type Outcome struct {
	Succeeded  []ToolResult `json:"succeeded"`
	Failed     []ToolResult `json:"failed"`
	TimedOut   []ToolResult `json:"timedOut"`
	Dropped    []string     `json:"dropped,omitempty"`
	IsReliable bool         `json:"isReliable"`
}

// ToolsUsed lists the tools that produced data.
func (o Outcome) ToolsUsed() []string {
	names := make([]string, 0, len(o.Succeeded))
	for _, r := range o.Succeeded {
		names = append(names, r.Tool)
	}
	return names
}

// Degraded lists tools that failed or timed out.
func (o Outcome) Degraded() []string {
	names := make([]string, 0, len(o.Failed)+len(o.TimedOut))
	for _, r := range o.Failed {
		names = append(names, r.Tool)
	}
	for _, r := range o.TimedOut {
		names = append(names, r.Tool)
	}
	return names
}
