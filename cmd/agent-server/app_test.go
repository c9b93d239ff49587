package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"finance-agent/internal/common/config"
	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/common/observability"
	"finance-agent/internal/models"
)

// ==========================
// Fixtures
// ==========================

type backends struct {
	providerCalls atomic.Int32
	marketCalls   atomic.Int32
	provider      *httptest.Server
	market        *httptest.Server
	redis         *miniredis.Miniredis
}

func startBackends(t *testing.T) *backends {
	t.Helper()
	b := &backends{redis: miniredis.RunT(t)}

	b.provider = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.providerCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"text":  "AAPL trades near its highs with steady momentum.",
			"model": "stub-large",
			"usage": map[string]int{"input_tokens": 120, "output_tokens": 40},
		})
	}))
	t.Cleanup(b.provider.Close)

	b.market = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.marketCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"symbol": r.URL.Query().Get("symbol"),
			"price":  187.5,
			"path":   r.URL.Path,
		})
	}))
	t.Cleanup(b.market.Close)
	return b
}

func (b *backends) config(t *testing.T) *config.Config {
	t.Helper()
	body := fmt.Sprintf(`
app:
  name: finance-agent-test
database:
  redis:
    enabled: true
    address: %s
agent:
  cache:
    backend: redis
  rate_limiter:
    backend: redis
  rate_limits:
    generation:
      requests: 3
      window: 60000
providers:
  - name: primary
    base_url: %s
    max_retries: 0
    cost_per_1k_input: 0.01
    cost_per_1k_output: 0.03
apis:
  market_data:
    base_url: %s
    max_retries: 0
    rate_per_second: 100
    burst: 100
`, b.redis.Addr(), b.provider.URL, b.market.URL)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	return cfg
}

func buildTestApp(t *testing.T, cfg *config.Config) *application {
	t.Helper()
	zapLog := zaptest.NewLogger(t)
	app, err := build(context.Background(), cfg, logger.NewZapAdapter(zapLog), zapLog, observability.New(cfg.App.Name))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.scheduler.Stop(ctx)
		_ = app.batches.Shutdown(ctx)
		app.close()
	})
	return app
}

func postJSON(t *testing.T, url string, body interface{}, caller string) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-ID", caller)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ==========================
// Full pipeline
// ==========================

func TestFullPipeline(t *testing.T) {
	b := startBackends(t)
	app := buildTestApp(t, b.config(t))
	srv := httptest.NewServer(app.api.Handler())
	defer srv.Close()

	t.Run("readiness includes redis", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/ready")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("analysis runs market tools and the provider", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/v1/ask", models.AskRequest{Text: "Analyse AAPL"}, "e2e-analyst")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out models.AskResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Contains(t, out.Answer, "steady momentum")
		assert.Equal(t, "primary", out.ProviderUsed)
		assert.Equal(t, []string{"AAPL"}, out.Entities)
		assert.NotEmpty(t, out.ToolsUsed)
		assert.False(t, out.Cached)
		assert.Greater(t, out.Cost, 0.0)
		assert.Equal(t, int32(1), b.providerCalls.Load())
		assert.Positive(t, b.marketCalls.Load())
	})

	t.Run("repeat question is served from redis", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/v1/ask", models.AskRequest{Text: "Analyse AAPL"}, "e2e-analyst")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out models.AskResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.True(t, out.Cached)
		assert.Zero(t, out.Cost)
		assert.Equal(t, int32(1), b.providerCalls.Load())
		assert.NotEmpty(t, b.redis.Keys())
	})

	t.Run("generation quota is shared through redis", func(t *testing.T) {
		// two requests already counted against the quota of three
		resp := postJSON(t, srv.URL+"/v1/ask", models.AskRequest{Text: "merci"}, "e2e-analyst")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = postJSON(t, srv.URL+"/v1/ask", models.AskRequest{Text: "merci"}, "e2e-analyst")
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))

		resp = postJSON(t, srv.URL+"/v1/ask", models.AskRequest{Text: "merci"}, "someone-else")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("cache invalidation by ticker", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/cache/AAPL", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestBatchPipeline(t *testing.T) {
	b := startBackends(t)
	app := buildTestApp(t, b.config(t))
	srv := httptest.NewServer(app.api.Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/v1/batch", models.BatchRequest{Entities: []string{"aapl", "MSFT", "AAPL"}}, "e2e-batch")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started models.BatchStartResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	assert.Equal(t, 2, started.TotalCount)

	var job models.BatchJob
	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/v1/batch/" + started.JobID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			return false
		}
		return job.Status != models.BatchProcessing
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, models.BatchCompleted, job.Status)
	assert.Equal(t, 2, job.Completed)
	assert.Len(t, job.Results, 2)

	// batch items bypass the generation quota of three
	assert.Equal(t, int32(2), b.providerCalls.Load())

	require.NoError(t, app.scheduler.RunNow("batch-sweep"))
	assert.Equal(t, 1, app.batches.Len())
}

// ==========================
// Startup failures
// ==========================

func TestBuild_UnreachableRedisReportsConnectionFailure(t *testing.T) {
	attempts, backoff := connectAttempts, connectBackoff
	connectAttempts, connectBackoff = 2, time.Millisecond
	t.Cleanup(func() { connectAttempts, connectBackoff = attempts, backoff })

	b := startBackends(t)
	cfg := b.config(t)
	b.redis.Close()

	zapLog := zaptest.NewLogger(t)
	app, err := build(context.Background(), cfg, logger.NewZapAdapter(zapLog), zapLog, observability.New(cfg.App.Name))
	require.Error(t, err)
	assert.Nil(t, app)
	se, ok := apperrors.Find(err, apperrors.ErrCodeDatabaseConnectionFailed)
	require.True(t, ok)
	assert.Contains(t, se.Details, "Redis connection failed after 2 attempts")
}
