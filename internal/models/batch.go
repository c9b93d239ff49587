// internal/models/batch.go
package models

import "time"

type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// BatchItemResult is the outcome of the pipeline for one entity.
type BatchItemResult struct {
	Entity       string     `json:"entity"`
	Success      bool       `json:"success"`
	Answer       string     `json:"answer,omitempty"`
	Intent       IntentKind `json:"intent,omitempty"`
	IsReliable   bool       `json:"isReliable"`
	ProviderUsed string     `json:"providerUsed,omitempty"`
	Cached       bool       `json:"cached"`
	Error        string     `json:"error,omitempty"`
}

// BatchJob is a point-in-time snapshot; the tracker owns the live copy.
type BatchJob struct {
	ID          string            `json:"jobId"`
	Status      BatchStatus       `json:"status"`
	Entities    []string          `json:"entities"`
	Question    string            `json:"question,omitempty"`
	CallerID    string            `json:"callerId,omitempty"`
	Total       int               `json:"total"`
	Completed   int               `json:"completed"`
	Failed      int               `json:"failed"`
	Results     []BatchItemResult `json:"results"`
	Error       string            `json:"error,omitempty"`
	Notify      bool              `json:"notify"`
	StartedAt   time.Time         `json:"startedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

func (j BatchJob) Finished() bool {
	return j.Status != BatchProcessing
}
