// internal/models/entity.go
package models

// Rejection reasons for candidate entities.
const (
	RejectSyntax   = "syntax"
	RejectDenyList = "deny_list"
)

// CandidateEntity is a token lifted from text along with its verdict.
type CandidateEntity struct {
	Token    string `json:"token"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Position int    `json:"position"`
}
