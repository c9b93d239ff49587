package database

import (
	"context"
	"fmt"
	"strings"

	"finance-agent/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// newsMapping matches the documents read by the company-news tool.
const newsMapping = `{
  "mappings": {
    "properties": {
      "title":        {"type": "text"},
      "summary":      {"type": "text"},
      "source":       {"type": "keyword"},
      "url":          {"type": "keyword"},
      "tickers":      {"type": "keyword"},
      "published_at": {"type": "date"}
    }
  }
}`

// ElasticsearchClient serves the company-news tool.
type ElasticsearchClient struct {
	Client    *elasticsearch.Client
	NewsIndex string
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("elasticsearch addresses are empty")
	}
	esCfg := elasticsearch.Config{
		Addresses:  cfg.Addresses,
		MaxRetries: 2,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es, NewsIndex: cfg.NewsIndex}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

// EnsureNewsIndex creates the news index with its mapping unless it already exists.
func (c *ElasticsearchClient) EnsureNewsIndex(ctx context.Context) error {
	if c.NewsIndex == "" {
		return nil
	}
	exists, err := c.Client.Indices.Exists([]string{c.NewsIndex}, c.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("news index lookup failed: %w", err)
	}
	exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	res, err := c.Client.Indices.Create(c.NewsIndex,
		c.Client.Indices.Create.WithContext(ctx),
		c.Client.Indices.Create.WithBody(strings.NewReader(newsMapping)),
	)
	if err != nil {
		return fmt.Errorf("news index creation failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("news index creation error: %s", res.Status())
	}
	return nil
}
