package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finance-agent/internal/common/config"

	_ "github.com/lib/pq"
)

const usageLedgerDDL = `
CREATE TABLE IF NOT EXISTS provider_usage (
	id            BIGSERIAL PRIMARY KEY,
	provider      TEXT             NOT NULL,
	model         TEXT             NOT NULL DEFAULT '',
	intent        TEXT             NOT NULL DEFAULT '',
	input_tokens  INTEGER          NOT NULL DEFAULT 0,
	output_tokens INTEGER          NOT NULL DEFAULT 0,
	cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
	success       BOOLEAN          NOT NULL,
	latency_ms    BIGINT           NOT NULL DEFAULT 0,
	recorded_at   TIMESTAMPTZ      NOT NULL
)`

const usageLedgerIndexDDL = `
CREATE INDEX IF NOT EXISTS provider_usage_recorded_at_idx
	ON provider_usage (provider, recorded_at DESC)`

// PostgresClient serves the fundamentals, recommendation and screener tools
// and the provider usage ledger.
type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("postgres host and database are required")
	}
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// Tool queries are short; recycle connections so a failover is picked up quickly.
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// NewPostgresFromDB wraps an already opened handle.
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// EnsureUsageLedger creates the provider_usage table and its index when missing.
// The market tables read by the tools are owned by the ingestion pipeline.
func (c *PostgresClient) EnsureUsageLedger(ctx context.Context) error {
	for _, stmt := range []string{usageLedgerDDL, usageLedgerIndexDDL} {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare usage ledger: %w", err)
		}
	}
	return nil
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
