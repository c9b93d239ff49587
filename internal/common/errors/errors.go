// Package errors provides the standardized error taxonomy of the agent core.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Agent core taxonomy
const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeToolFailed         ErrorCode = "TOOL_FAILED"
	ErrCodeToolTimeout        ErrorCode = "TOOL_TIMEOUT"
	ErrCodeUnknownTool        ErrorCode = "UNKNOWN_TOOL"
	ErrCodeProviderFailed     ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeRateLimitExceeded  ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeCacheComputeFailed ErrorCode = "CACHE_COMPUTE_FAILED"
	ErrCodeJobNotFound        ErrorCode = "JOB_NOT_FOUND"
)

// Infrastructure
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeMarketDataFailed         ErrorCode = "MARKET_DATA_FAILED"

	ErrCodeIntentParsingFailed ErrorCode = "INTENT_PARSING_FAILED"
	ErrCodeIntentAPITimeout    ErrorCode = "INTENT_API_TIMEOUT"
	ErrCodeLLMTimeout          ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMSynthesisFailed  ErrorCode = "LLM_SYNTHESIS_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// DegradedMessage is the only text a caller sees when answer generation is unavailable.
const DegradedMessage = "Sorry, I can't produce an answer right now. Please try again in a few moments."

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ResetIn is the retry delay carried by RATE_LIMIT_EXCEEDED errors.
func (e *StandardError) ResetIn() time.Duration {
	if e.Metadata == nil {
		return 0
	}
	if d, ok := e.Metadata["resetIn"].(time.Duration); ok {
		return d
	}
	return 0
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError reports malformed input. It never surfaces as a system error.
func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Request could not be understood", details, false, nil)
}

func NewToolError(tool string, err error) *StandardError {
	return newError(ErrCodeToolFailed, "Tool invocation failed",
		fmt.Sprintf("tool: %s, error: %v", tool, err), true, err)
}

func NewToolTimeoutError(tool string, timeout time.Duration) *StandardError {
	e := newError(ErrCodeToolTimeout, "Tool invocation timed out",
		fmt.Sprintf("tool: %s, timeout: %s", tool, timeout), true, nil)
	e.Metadata = map[string]interface{}{"tool": tool}
	return e
}

func NewUnknownToolError(tool string) *StandardError {
	return newError(ErrCodeUnknownTool, "Tool is not registered", fmt.Sprintf("tool: %s", tool), false, nil)
}

// NewProviderError is returned when every generation provider failed.
// Message is user-facing and never names a provider; Details stays internal.
func NewProviderError(details string, cause error) *StandardError {
	return newError(ErrCodeProviderFailed, DegradedMessage, details, true, cause)
}

func NewRateLimitExceededError(limitClass string, limit int, resetIn time.Duration) *StandardError {
	e := newError(ErrCodeRateLimitExceeded, "Too many requests, please retry later",
		fmt.Sprintf("class: %s, limit: %d", limitClass, limit), true, nil)
	e.Metadata = map[string]interface{}{
		"limitClass": limitClass,
		"limit":      limit,
		"resetIn":    resetIn,
	}
	return e
}

func NewCacheComputeError(fingerprint string, err error) *StandardError {
	return newError(ErrCodeCacheComputeFailed, "Answer computation failed",
		fmt.Sprintf("fingerprint: %s, error: %v", fingerprint, err), true, err)
}

func NewJobNotFoundError(jobID string) *StandardError {
	return newError(ErrCodeJobNotFound, "Batch job not found", fmt.Sprintf("jobId: %s", jobID), false, nil)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true, err)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query failed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true, err)
}

func NewMarketDataFailedError(endpoint string, err error) *StandardError {
	return newError(ErrCodeMarketDataFailed, "Market data request failed",
		fmt.Sprintf("endpoint: %s, error: %s", endpoint, err.Error()), true, err)
}

func NewIntentParsingFailedError(err error) *StandardError {
	return newError(ErrCodeIntentParsingFailed, "Remote intent classification failed", err.Error(), true, err)
}

func NewIntentAPITimeoutError() *StandardError {
	return newError(ErrCodeIntentAPITimeout, "Remote intent classification timed out", "", true, nil)
}

func NewLLMTimeoutError(provider string) *StandardError {
	return newError(ErrCodeLLMTimeout, "Generation provider timed out", fmt.Sprintf("provider: %s", provider), true, nil)
}

func NewLLMSynthesisFailedError(provider string, err error) *StandardError {
	return newError(ErrCodeLLMSynthesisFailed, "Generation provider failed",
		fmt.Sprintf("provider: %s, error: %v", provider, err), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification send failed",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true, err)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 3. Lookup Helpers
// ==========================

// Find returns the first StandardError with code in err's wrap chain.
func Find(err error, code ErrorCode) (*StandardError, bool) {
	for err != nil {
		if se, ok := err.(*StandardError); ok && se.Code == code {
			return se, true
		}
		err = stderrors.Unwrap(err)
	}
	return nil, false
}

// HasCode reports whether err's wrap chain contains code.
func HasCode(err error, code ErrorCode) bool {
	_, ok := Find(err, code)
	return ok
}

// As returns the outermost StandardError in err's chain.
func As(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ==========================
// 4. Transport Mapping
// ==========================

// HTTPStatus maps an error code to the status written by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeJobNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeProviderFailed, ErrCodeLLMTimeout, ErrCodeLLMSynthesisFailed:
		return http.StatusServiceUnavailable
	case ErrCodeToolTimeout, ErrCodeIntentAPITimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeMarketDataFailed,
		ErrCodeIntentParsingFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeIntentAPITimeout, ErrCodeToolTimeout:
		return 2

	case ErrCodeLLMTimeout, ErrCodeLLMSynthesisFailed:
		return 1

	default:
		return 0
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "RATE_LIMIT"):
		return "QUOTA"
	case strings.Contains(codeStr, "TOOL"):
		return "TOOL"
	case strings.Contains(codeStr, "PROVIDER") || strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "INTENT"):
		return "AI"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "MARKET"):
		return "MARKET_DATA"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "NOT_FOUND"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
