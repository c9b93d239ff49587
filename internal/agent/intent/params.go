package intent

import (
	"regexp"
	"strings"

	"finance-agent/internal/models"
)

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

var sectors = []struct{ word, sector string }{
	{"tech", "technology"},
	{"technology", "technology"},
	{"technologie", "technology"},
	{"energy", "energy"},
	{"énergie", "energy"},
	{"healthcare", "healthcare"},
	{"health", "healthcare"},
	{"santé", "healthcare"},
	{"bank", "financials"},
	{"banks", "financials"},
	{"banques", "financials"},
	{"financial", "financials"},
	{"financials", "financials"},
	{"utilities", "utilities"},
	{"industrial", "industrials"},
	{"industrials", "industrials"},
	{"consumer", "consumer"},
	{"retail", "consumer"},
	{"telecom", "communication"},
	{"real estate", "real_estate"},
	{"immobilier", "real_estate"},
}

func extractParameters(norm string, kind models.IntentKind) map[string]string {
	params := map[string]string{}

	switch kind {
	case models.IntentTechnicalAnalysis:
		switch {
		case containsPhrase(norm, "hourly") || containsPhrase(norm, "heure") || containsPhrase(norm, "intraday"):
			params["timeframe"] = "hourly"
		case containsPhrase(norm, "weekly") || containsPhrase(norm, "hebdo") || containsPhrase(norm, "semaine") || containsPhrase(norm, "week"):
			params["timeframe"] = "weekly"
		default:
			params["timeframe"] = "daily"
		}
	case models.IntentEarnings:
		for _, q := range []string{"q1", "q2", "q3", "q4"} {
			if containsPhrase(norm, q) {
				params["quarter"] = strings.ToUpper(q)
				break
			}
		}
		if m := yearPattern.FindStringSubmatch(norm); m != nil {
			params["year"] = m[1]
		}
	case models.IntentScreening:
		for _, s := range sectors {
			if containsPhrase(norm, s.word) {
				params["sector"] = s.sector
				break
			}
		}
		switch {
		case containsPhrase(norm, "dividend") || containsPhrase(norm, "dividends") || containsPhrase(norm, "dividendes"):
			params["criteria"] = "dividend"
		case containsPhrase(norm, "undervalued") || containsPhrase(norm, "value") || containsPhrase(norm, "cheap"):
			params["criteria"] = "value"
		case containsPhrase(norm, "growth") || containsPhrase(norm, "croissance"):
			params["criteria"] = "growth"
		}
	}

	if kind == models.IntentComprehensiveAnalysis {
		params["analysis_type"] = "comprehensive"
	} else {
		params["analysis_type"] = "quick"
	}

	if r, ok := recencyByKind[kind]; ok {
		params["recency"] = r
	} else {
		params["recency"] = "month"
	}
	return params
}
