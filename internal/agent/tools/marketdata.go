package tools

import (
	"context"
	"net/url"

	apperrors "finance-agent/internal/common/errors"
	httpclient "finance-agent/internal/common/http"
	"finance-agent/internal/models"
)

var errMissingTicker = apperrors.NewValidationError("ticker is required")

// MarketData wraps the market-data HTTP API.
type MarketData struct {
	client *httpclient.Client
}

func NewMarketData(client *httpclient.Client) *MarketData {
	return &MarketData{client: client}
}

func (m *MarketData) get(ctx context.Context, path string, query url.Values) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := m.client.GetJSON(ctx, path, query, &out); err != nil {
		return nil, apperrors.NewMarketDataFailedError(path, err)
	}
	return out, nil
}

func (m *MarketData) Quote(ctx context.Context, p models.ToolParams) (map[string]interface{}, error) {
	ticker := p.Ticker()
	if ticker == "" {
		return nil, errMissingTicker
	}
	out, err := m.get(ctx, "/quote", url.Values{"symbol": {ticker}})
	if err != nil {
		return nil, err
	}
	out["ticker"] = ticker
	return out, nil
}

func (m *MarketData) Technical(ctx context.Context, p models.ToolParams) (map[string]interface{}, error) {
	ticker := p.Ticker()
	if ticker == "" {
		return nil, errMissingTicker
	}
	timeframe := p.Parameters["timeframe"]
	if timeframe == "" {
		timeframe = "daily"
	}
	indicators, err := m.get(ctx, "/technical", url.Values{"symbol": {ticker}, "timeframe": {timeframe}})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"ticker":     ticker,
		"timeframe":  timeframe,
		"indicators": indicators,
	}, nil
}

func (m *MarketData) Earnings(ctx context.Context, p models.ToolParams) (map[string]interface{}, error) {
	ticker := p.Ticker()
	if ticker == "" {
		return nil, errMissingTicker
	}
	query := url.Values{"symbol": {ticker}}
	if q := p.Parameters["quarter"]; q != "" {
		query.Set("quarter", q)
	}
	if y := p.Parameters["year"]; y != "" {
		query.Set("year", y)
	}
	out, err := m.get(ctx, "/earnings", query)
	if err != nil {
		return nil, err
	}
	if _, ok := out["events"]; !ok {
		out["events"] = []interface{}{}
	}
	out["ticker"] = ticker
	return out, nil
}

func (m *MarketData) Overview(ctx context.Context, _ models.ToolParams) (map[string]interface{}, error) {
	out, err := m.get(ctx, "/market/overview", nil)
	if err != nil {
		return nil, err
	}
	if _, ok := out["indices"]; !ok {
		out["indices"] = []interface{}{}
	}
	return out, nil
}
