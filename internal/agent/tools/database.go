package tools

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "finance-agent/internal/common/errors"
	"finance-agent/internal/models"
)

const (
	recommendationLimit = 10
	screenerLimit       = 15
)

// Database runs the parameterized queries behind the relational tools.
type Database struct {
	db *sql.DB
}

func NewDatabase(db *sql.DB) *Database {
	return &Database{db: db}
}

func nullable(v sql.NullFloat64) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

func queryFailed(q models.QueryType, err error) error {
	return apperrors.NewQueryExecutionFailedError(string(q), err)
}

// Fundamentals returns the first entity's profile at the top level and every
// requested company under "companies".
func (d *Database) Fundamentals(ctx context.Context, p models.ToolParams) (map[string]interface{}, error) {
	if len(p.Entities) == 0 {
		return nil, errMissingTicker
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT ticker, name, sector, market_cap, pe_ratio, eps, dividend_yield, revenue_growth
		FROM company_fundamentals
		WHERE ticker = ANY($1)`, pq.Array(p.Entities))
	if err != nil {
		return nil, queryFailed(models.QueryTypeFundamentals, err)
	}
	defer rows.Close()

	byTicker := make(map[string]map[string]interface{}, len(p.Entities))
	for rows.Next() {
		var ticker, name, sector string
		var marketCap float64
		var pe, eps, dividend, growth sql.NullFloat64
		if err := rows.Scan(&ticker, &name, &sector, &marketCap, &pe, &eps, &dividend, &growth); err != nil {
			return nil, queryFailed(models.QueryTypeFundamentals, err)
		}
		byTicker[ticker] = map[string]interface{}{
			"ticker":        ticker,
			"name":          name,
			"sector":        sector,
			"marketCap":     marketCap,
			"peRatio":       nullable(pe),
			"eps":           nullable(eps),
			"dividendYield": nullable(dividend),
			"revenueGrowth": nullable(growth),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(models.QueryTypeFundamentals, err)
	}

	companies := make([]interface{}, 0, len(p.Entities))
	for _, t := range p.Entities {
		if c, ok := byTicker[t]; ok {
			companies = append(companies, c)
		}
	}
	if len(companies) == 0 {
		return nil, queryFailed(models.QueryTypeFundamentals, fmt.Errorf("no fundamentals for %v", p.Entities))
	}

	out := make(map[string]interface{}, len(companies[0].(map[string]interface{}))+1)
	for k, v := range companies[0].(map[string]interface{}) {
		out[k] = v
	}
	out["companies"] = companies
	return out, nil
}

var ratingScores = map[string]float64{
	"strong_buy":  5,
	"buy":         4,
	"hold":        3,
	"sell":        2,
	"strong_sell": 1,
}

func consensus(scores []float64) string {
	if len(scores) == 0 {
		return "none"
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))
	switch {
	case avg >= 4.5:
		return "strong_buy"
	case avg >= 3.5:
		return "buy"
	case avg >= 2.5:
		return "hold"
	case avg >= 1.5:
		return "sell"
	default:
		return "strong_sell"
	}
}

func (d *Database) Recommendations(ctx context.Context, p models.ToolParams) (map[string]interface{}, error) {
	ticker := p.Ticker()
	if ticker == "" {
		return nil, errMissingTicker
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT firm, rating, target_price, published_at
		FROM analyst_recommendations
		WHERE ticker = $1
		ORDER BY published_at DESC
		LIMIT $2`, ticker, recommendationLimit)
	if err != nil {
		return nil, queryFailed(models.QueryTypeRecommendations, err)
	}
	defer rows.Close()

	recs := make([]interface{}, 0, recommendationLimit)
	scores := make([]float64, 0, recommendationLimit)
	var targetSum float64
	var targets int
	for rows.Next() {
		var firm, rating string
		var target sql.NullFloat64
		var published time.Time
		if err := rows.Scan(&firm, &rating, &target, &published); err != nil {
			return nil, queryFailed(models.QueryTypeRecommendations, err)
		}
		if s, ok := ratingScores[rating]; ok {
			scores = append(scores, s)
		}
		if target.Valid {
			targetSum += target.Float64
			targets++
		}
		recs = append(recs, map[string]interface{}{
			"firm":        firm,
			"rating":      rating,
			"targetPrice": nullable(target),
			"publishedAt": published.UTC().Format(time.RFC3339),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(models.QueryTypeRecommendations, err)
	}

	out := map[string]interface{}{
		"ticker":          ticker,
		"recommendations": recs,
		"consensus":       consensus(scores),
	}
	if targets > 0 {
		out["averageTarget"] = targetSum / float64(targets)
	}
	return out, nil
}

// screenCriteria translates a named criterion into numeric bounds.
type screenCriteria struct {
	MinDividendYield float64
	MaxPE            float64
	MinGrowth        float64
}

var criteriaBounds = map[string]screenCriteria{
	"dividend": {MinDividendYield: 3.0},
	"value":    {MaxPE: 15},
	"growth":   {MinGrowth: 0.15},
}

// Screener lists companies matching sector and criteria, excluding any
// entities named in the request.
func (d *Database) Screener(ctx context.Context, p models.ToolParams) (map[string]interface{}, error) {
	sector := p.Parameters["sector"]
	criteria := p.Parameters["criteria"]
	bounds := criteriaBounds[criteria]

	exclude := p.Entities
	if exclude == nil {
		exclude = []string{}
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT ticker, name, sector, market_cap, pe_ratio, dividend_yield, revenue_growth
		FROM company_fundamentals
		WHERE ($1 = '' OR sector = $1)
		  AND COALESCE(dividend_yield, 0) >= $2
		  AND ($3 = 0 OR pe_ratio <= $3)
		  AND COALESCE(revenue_growth, 0) >= $4
		  AND NOT (ticker = ANY($5))
		ORDER BY market_cap DESC
		LIMIT $6`,
		sector, bounds.MinDividendYield, bounds.MaxPE, bounds.MinGrowth, pq.Array(exclude), screenerLimit)
	if err != nil {
		return nil, queryFailed(models.QueryTypeScreener, err)
	}
	defer rows.Close()

	matches := make([]interface{}, 0, screenerLimit)
	for rows.Next() {
		var ticker, name, sec string
		var marketCap float64
		var pe, dividend, growth sql.NullFloat64
		if err := rows.Scan(&ticker, &name, &sec, &marketCap, &pe, &dividend, &growth); err != nil {
			return nil, queryFailed(models.QueryTypeScreener, err)
		}
		matches = append(matches, map[string]interface{}{
			"ticker":        ticker,
			"name":          name,
			"sector":        sec,
			"marketCap":     marketCap,
			"peRatio":       nullable(pe),
			"dividendYield": nullable(dividend),
			"revenueGrowth": nullable(growth),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(models.QueryTypeScreener, err)
	}

	return map[string]interface{}{
		"criteria": map[string]interface{}{
			"sector":   sector,
			"criteria": criteria,
		},
		"matches": matches,
	}, nil
}
