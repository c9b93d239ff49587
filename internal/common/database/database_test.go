package database

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"finance-agent/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis_Ping(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewRedis_EmptyAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestElasticsearch_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestElasticsearch_PingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	assert.Error(t, client.Ping(context.Background()))
}

func TestPostgresDSN(t *testing.T) {
	cfg := config.PostgresConfig{Host: "db", Port: 5432, User: "agent", Password: "pw", Database: "market", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=agent password=pw dbname=market sslmode=disable", cfg.GetDSN())
}

func TestNewPostgres_RequiresHost(t *testing.T) {
	_, err := NewPostgres(config.PostgresConfig{Database: "market"})
	assert.Error(t, err)
}

func TestEnsureUsageLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS provider_usage").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS provider_usage_recorded_at_idx").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewPostgresFromDB(db).EnsureUsageLedger(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureUsageLedger_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err = NewPostgresFromDB(db).EnsureUsageLedger(context.Background())
	assert.ErrorContains(t, err, "permission denied")
}

func TestEnsureNewsIndex_CreatesMissingIndex(t *testing.T) {
	var created atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/market_news":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/market_news":
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), `"published_at"`)
			created.Store(true)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}, NewsIndex: "market_news"})
	require.NoError(t, err)
	require.NoError(t, client.EnsureNewsIndex(context.Background()))
	assert.True(t, created.Load())
}

func TestEnsureNewsIndex_ExistingIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		if r.Method != http.MethodHead {
			t.Errorf("index should not be recreated, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}, NewsIndex: "market_news"})
	require.NoError(t, err)
	assert.NoError(t, client.EnsureNewsIndex(context.Background()))
}

func TestNewElasticsearch_RequiresAddresses(t *testing.T) {
	_, err := NewElasticsearch(config.ElasticsearchConfig{})
	assert.Error(t, err)
}
