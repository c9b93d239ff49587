// internal/models/notification.go
package models

// Notification is a channel-agnostic message about a finished batch job.
type Notification struct {
	JobID   string            `json:"jobId"`
	Channel string            `json:"channel"` // "sns", "email"
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}
