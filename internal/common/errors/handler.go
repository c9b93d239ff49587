package errors

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
)

// ErrorHandler turns errors into JSON API responses.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Code      string  `json:"code"`
	Message   string  `json:"message"`
	Retryable bool    `json:"retryable"`
	ResetIn   float64 `json:"resetIn,omitempty"` // seconds
	Answer    string  `json:"answer,omitempty"`
	RequestID string  `json:"requestId,omitempty"`
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleHTTPError logs err with its internal details and writes a response
// that carries only the user-facing message.
func (h *ErrorHandler) HandleHTTPError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := h.normalizeError(err)
	status := HTTPStatus(stdErr.Code)

	// Quota and degraded answers can surface from inside a cache computation.
	if inner, ok := Find(err, ErrCodeRateLimitExceeded); ok {
		stdErr, status = inner, http.StatusTooManyRequests
	} else if inner, ok := Find(err, ErrCodeProviderFailed); ok {
		stdErr, status = inner, http.StatusServiceUnavailable
	}

	requestID := r.Header.Get("X-Request-ID")
	h.logError(r, stdErr, status, requestID)

	body := ErrorBody{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Retryable: stdErr.Retryable,
		RequestID: requestID,
	}

	if stdErr.Code == ErrCodeRateLimitExceeded {
		resetIn := stdErr.ResetIn()
		body.ResetIn = resetIn.Seconds()
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(resetIn.Seconds()))))
	}
	if stdErr.Code == ErrCodeProviderFailed {
		body.Answer = DegradedMessage
	}

	WriteJSON(w, status, body)
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

func (h *ErrorHandler) logError(r *http.Request, stdErr *StandardError, status int, requestID string) {
	fields := map[string]interface{}{
		"method":        r.Method,
		"path":          r.URL.Path,
		"status":        status,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
		"requestId":     requestID,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields)
		return
	}
	h.logger.Warn("request rejected", fields)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
