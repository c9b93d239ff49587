// Package provider synthesizes answers through an ordered list of generation
// providers, falling back to the next one on any failure.
package provider

import (
	"context"
	"errors"
	"strings"

	"finance-agent/internal/common/config"
	apperrors "finance-agent/internal/common/errors"
	httpclient "finance-agent/internal/common/http"
	"finance-agent/internal/models"
)

const generatePath = "/api/ai/generate"

// Provider generates text for a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (Response, error)
}

type Response struct {
	Text  string
	Model string
	Usage models.Usage
}

// HTTPProvider speaks the generation API shared by every configured provider.
type HTTPProvider struct {
	cfg    config.ProviderConfig
	client *httpclient.Client
}

func NewHTTPProvider(cfg config.ProviderConfig) *HTTPProvider {
	opts := []httpclient.Option{httpclient.WithMaxRetries(cfg.MaxRetries)}
	if cfg.APIKey != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: httpclient.NewClient(cfg.BaseURL, config.GetDuration(cfg.Timeout), opts...),
	}
}

func (p *HTTPProvider) Name() string { return p.cfg.Name }

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *HTTPProvider) Generate(ctx context.Context, prompt string) (Response, error) {
	var out generateResponse
	err := p.client.PostJSON(ctx, generatePath, generateRequest{
		Prompt:      prompt,
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}, &out)
	if err != nil {
		if httpclient.IsTimeout(err) {
			return Response{}, apperrors.NewLLMTimeoutError(p.cfg.Name)
		}
		return Response{}, apperrors.NewLLMSynthesisFailedError(p.cfg.Name, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return Response{}, apperrors.NewLLMSynthesisFailedError(p.cfg.Name, errors.New("empty completion"))
	}

	model := out.Model
	if model == "" {
		model = p.cfg.Model
	}
	return Response{
		Text:  strings.TrimSpace(out.Text),
		Model: model,
		Usage: models.Usage{
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
			Cost:         p.price(out.Usage.InputTokens, out.Usage.OutputTokens),
		},
	}, nil
}

func (p *HTTPProvider) price(in, out int) float64 {
	return float64(in)/1000*p.cfg.CostPer1KInput + float64(out)/1000*p.cfg.CostPer1KOut
}

// FromConfig builds providers in configured order.
func FromConfig(cfgs []config.ProviderConfig) []Provider {
	out := make([]Provider, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, NewHTTPProvider(c))
	}
	return out
}
