package intent

import (
	"context"
	"fmt"
	"time"

	"finance-agent/internal/common/config"
	apperrors "finance-agent/internal/common/errors"
	httpclient "finance-agent/internal/common/http"
	"finance-agent/internal/models"
)

const parseIntentPath = "/api/ai/parse-intent"

type RemoteEntity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// RemoteResult is the payload returned by the parse-intent endpoint.
type RemoteResult struct {
	Intent                 string            `json:"intent"`
	Confidence             float64           `json:"confidence"`
	Tickers                []string          `json:"tickers"`
	Entities               []RemoteEntity    `json:"entities"`
	SuggestedTools         []string          `json:"suggestedTools"`
	Parameters             map[string]string `json:"parameters"`
	NeedsClarification     bool              `json:"needsClarification"`
	ClarificationQuestions []string          `json:"clarificationQuestions"`
}

// HTTPRemote calls an external intent-parsing service.
type HTTPRemote struct {
	client  *httpclient.Client
	timeout time.Duration
}

func NewHTTPRemote(cfg config.ClassifierConfig) *HTTPRemote {
	timeout := config.GetDuration(cfg.RemoteTimeout)
	return &HTTPRemote{
		client:  httpclient.NewClient(cfg.RemoteBaseURL, timeout, httpclient.WithMaxRetries(cfg.RemoteMaxRetries)),
		timeout: timeout,
	}
}

func (r *HTTPRemote) Classify(ctx context.Context, text string, conv *models.ConversationContext) (*RemoteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body := map[string]interface{}{"query": text}
	if conv != nil {
		body["context"] = conv
	}

	var out RemoteResult
	if err := r.client.PostJSON(ctx, parseIntentPath, body, &out); err != nil {
		if httpclient.IsTimeout(err) || ctx.Err() != nil {
			return nil, apperrors.NewIntentAPITimeoutError()
		}
		return nil, apperrors.NewIntentParsingFailedError(err)
	}
	if out.Intent == "" {
		return nil, apperrors.NewIntentParsingFailedError(fmt.Errorf("response carried no intent"))
	}
	return &out, nil
}
