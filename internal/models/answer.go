// internal/models/answer.go
package models

import "time"

// Usage is token and cost accounting for one generation call.
type Usage struct {
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Cost         float64 `json:"cost"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		Cost:         u.Cost + other.Cost,
	}
}

// ProviderNone marks answers that did not involve a generation provider.
const ProviderNone = "none"

// Answer is the synthesized reply; it is the value held by the response cache.
type Answer struct {
	Text         string    `json:"text"`
	ProviderUsed string    `json:"providerUsed"`
	ToolsUsed    []string  `json:"toolsUsed"`
	IsReliable   bool      `json:"isReliable"`
	Usage        Usage     `json:"usage"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// CacheEntry is a stored answer plus its bookkeeping.
type CacheEntry struct {
	Fingerprint string     `json:"fingerprint"`
	Answer      Answer     `json:"answer"`
	CachedAt    time.Time  `json:"cachedAt"`
	TTL         int64      `json:"ttlMs"`
	Entities    []string   `json:"entities,omitempty"`
	Kind        IntentKind `json:"kind"`
	Hits        int64      `json:"hits"`
}

func (e CacheEntry) ExpiresAt() time.Time {
	return e.CachedAt.Add(time.Duration(e.TTL) * time.Millisecond)
}

func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// CacheStats is reported by GET /v1/cache/stats.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Shared  int64 `json:"shared"`
	Errors  int64 `json:"errors"`
	Entries int64 `json:"entries"`
}
