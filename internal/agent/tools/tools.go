// Package tools builds the descriptors of every backend capability the
// orchestrator can invoke.
package tools

import (
	"database/sql"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"finance-agent/internal/common/config"
	httpclient "finance-agent/internal/common/http"
	"finance-agent/internal/common/logger"
	"finance-agent/internal/models"
)

const (
	StockQuote             = "stock-quote"
	TechnicalIndicators    = "technical-indicators"
	EarningsCalendar       = "earnings-calendar"
	MarketOverview         = "market-overview"
	CompanyFundamentals    = "company-fundamentals"
	AnalystRecommendations = "analyst-recommendations"
	StockScreener          = "stock-screener"
	CompanyNews            = "company-news"
)

// Deps are the backends; a nil backend leaves its tools unregistered.
type Deps struct {
	MarketData *httpclient.Client
	DB         *sql.DB
	Search     *elasticsearch.Client
	NewsIndex  string
}

type defaults struct {
	class   string
	timeout time.Duration
}

var toolDefaults = map[string]defaults{
	StockQuote:             {models.CostClassMarketData, 3 * time.Second},
	TechnicalIndicators:    {models.CostClassMarketData, 5 * time.Second},
	EarningsCalendar:       {models.CostClassMarketData, 5 * time.Second},
	MarketOverview:         {models.CostClassMarketData, 4 * time.Second},
	CompanyFundamentals:    {models.CostClassDatabase, 3 * time.Second},
	AnalystRecommendations: {models.CostClassDatabase, 3 * time.Second},
	StockScreener:          {models.CostClassDatabase, 5 * time.Second},
	CompanyNews:            {models.CostClassSearch, 4 * time.Second},
}

// Build returns the descriptors of every enabled tool whose backend is available.
func Build(cfg *config.Config, deps Deps, log logger.Logger) []models.ToolDescriptor {
	invokers := map[string]models.InvokeFunc{}
	order := []string{}
	add := func(name string, fn models.InvokeFunc) {
		invokers[name] = fn
		order = append(order, name)
	}

	if deps.MarketData != nil {
		md := NewMarketData(deps.MarketData)
		add(StockQuote, md.Quote)
		add(TechnicalIndicators, md.Technical)
		add(EarningsCalendar, md.Earnings)
		add(MarketOverview, md.Overview)
	} else {
		log.Warn("market data API not configured, skipping its tools", nil)
	}

	if deps.DB != nil {
		db := NewDatabase(deps.DB)
		add(CompanyFundamentals, db.Fundamentals)
		add(AnalystRecommendations, db.Recommendations)
		add(StockScreener, db.Screener)
	} else {
		log.Warn("postgres not configured, skipping its tools", nil)
	}

	if deps.Search != nil {
		add(CompanyNews, NewNews(deps.Search, deps.NewsIndex).Search)
	} else {
		log.Warn("elasticsearch not configured, skipping company-news", nil)
	}

	descriptors := make([]models.ToolDescriptor, 0, len(order))
	for _, name := range order {
		tc := config.GetToolConfig(cfg, name)
		if !tc.Enabled {
			log.Info("tool disabled by configuration", map[string]interface{}{"tool": name})
			continue
		}

		d := toolDefaults[name]
		desc := models.ToolDescriptor{
			Name:      name,
			Timeout:   d.timeout,
			CostClass: d.class,
			Invoke:    invokers[name],
		}
		if tc.Timeout > 0 {
			desc.Timeout = config.GetDuration(tc.Timeout)
		}
		if tc.CostClass != "" {
			desc.CostClass = tc.CostClass
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors
}
