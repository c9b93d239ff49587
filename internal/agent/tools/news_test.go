package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/models"
)

func newsServer(t *testing.T, handler http.HandlerFunc) *News {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewNews(client, "market_news")
}

func TestNewsSearch(t *testing.T) {
	var query map[string]interface{}
	news := newsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/market_news/_search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&query))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hits": {
				"total": {"value": 42},
				"hits": [
					{"_source": {"title": "Apple beats estimates", "source": "Wire", "tickers": ["AAPL"], "published_at": "2025-02-28T14:00:00Z"}}
				]
			}
		}`))
	})

	out, err := news.Search(context.Background(), models.ToolParams{
		Entities:   []string{"AAPL"},
		Parameters: map[string]string{"recency": "day"},
	})
	require.NoError(t, err)

	assert.Equal(t, 42, out["total"])
	articles := out["articles"].([]interface{})
	require.Len(t, articles, 1)
	assert.Equal(t, "Apple beats estimates", articles[0].(map[string]interface{})["title"])

	filters := query["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	require.Len(t, filters, 2)
	rng := filters[0].(map[string]interface{})["range"].(map[string]interface{})["published_at"].(map[string]interface{})
	assert.Equal(t, "now-1d/d", rng["gte"])
	terms := filters[1].(map[string]interface{})["terms"].(map[string]interface{})["tickers"]
	assert.Equal(t, []interface{}{"AAPL"}, terms)
}

func TestNewsSearch_WithoutEntitiesOnlyFiltersRecency(t *testing.T) {
	q := (&News{index: "market_news"}).buildQuery(models.ToolParams{Kind: models.IntentMarketOverview})
	filters := q["query"].(map[string]interface{})["bool"].(map[string]interface{})["filter"].([]interface{})
	assert.Len(t, filters, 1)
}

func TestNewsSearch_ErrorStatus(t *testing.T) {
	news := newsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
	})

	_, err := news.Search(context.Background(), models.ToolParams{Entities: []string{"AAPL"}})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSearchQueryFailed))
}
