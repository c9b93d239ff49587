package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/models"
)

const newsPageSize = 10

var recencyRanges = map[string]string{
	"hour":  "now-1h",
	"day":   "now-1d/d",
	"week":  "now-7d/d",
	"month": "now-30d/d",
}

// News searches the market news index.
type News struct {
	client *elasticsearch.Client
	index  string
}

func NewNews(client *elasticsearch.Client, index string) *News {
	return &News{client: client, index: index}
}

type newsHit struct {
	Source struct {
		Title       string   `json:"title"`
		Source      string   `json:"source"`
		URL         string   `json:"url"`
		Summary     string   `json:"summary"`
		Tickers     []string `json:"tickers"`
		PublishedAt string   `json:"published_at"`
	} `json:"_source"`
}

type newsResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []newsHit `json:"hits"`
	} `json:"hits"`
}

func (n *News) buildQuery(p models.ToolParams) map[string]interface{} {
	since, ok := recencyRanges[p.Parameters["recency"]]
	if !ok {
		since = recencyRanges["week"]
	}

	filters := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"published_at": map[string]interface{}{"gte": since},
			},
		},
	}
	if len(p.Entities) > 0 {
		filters = append(filters, map[string]interface{}{
			"terms": map[string]interface{}{"tickers": p.Entities},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"sort": []interface{}{
			map[string]interface{}{"published_at": map[string]interface{}{"order": "desc"}},
		},
		"size": newsPageSize,
	}
}

func (n *News) Search(ctx context.Context, p models.ToolParams) (map[string]interface{}, error) {
	body, err := json.Marshal(n.buildQuery(p))
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(n.index, err)
	}

	req := esapi.SearchRequest{
		Index: []string{n.index},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, n.client)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(n.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(n.index, fmt.Errorf("search failed: %s", res.String()))
	}

	var r newsResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(n.index, err)
	}

	articles := make([]interface{}, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		articles = append(articles, map[string]interface{}{
			"title":       h.Source.Title,
			"source":      h.Source.Source,
			"url":         h.Source.URL,
			"summary":     h.Source.Summary,
			"tickers":     h.Source.Tickers,
			"publishedAt": h.Source.PublishedAt,
		})
	}

	tickers := p.Entities
	if tickers == nil {
		tickers = []string{}
	}
	return map[string]interface{}{
		"tickers":  tickers,
		"articles": articles,
		"total":    r.Hits.Total.Value,
	}, nil
}
