// internal/models/query_types.go
package models

// QueryType names the parameterized SQL statements used by database tools and the usage ledger.
type QueryType string

const (
	QueryTypeFundamentals    QueryType = "company_fundamentals"
	QueryTypeRecommendations QueryType = "analyst_recommendations"
	QueryTypeScreener        QueryType = "stock_screener"
	QueryTypeUsageInsert     QueryType = "provider_usage_insert"
)
