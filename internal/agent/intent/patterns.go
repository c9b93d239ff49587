package intent

import "finance-agent/internal/models"

type pattern struct {
	kind       models.IntentKind
	keywords   []string
	confidence float64
}

// patterns are evaluated in order; earlier entries win a tie of equal specificity
// only after the ambiguity has been flagged.
var patterns = []pattern{
	{
		kind:       models.IntentStockPrice,
		keywords:   []string{"price", "quote", "trading at", "how much", "worth", "prix", "cours", "cotation", "combien", "coûte", "coute"},
		confidence: 0.95,
	},
	{
		kind:       models.IntentFundamentals,
		keywords:   []string{"fundamentals", "fundamental", "pe ratio", "p/e", "revenue", "revenues", "margins", "eps", "roe", "balance sheet", "fondamentaux", "revenus", "bénéfices", "marges"},
		confidence: 0.9,
	},
	{
		kind:       models.IntentTechnicalAnalysis,
		keywords:   []string{"technical", "technicals", "rsi", "macd", "support", "resistance", "résistance", "moving average", "moyennes mobiles", "sma", "ema", "trend", "technique", "tendance"},
		confidence: 0.9,
	},
	{
		kind:       models.IntentNews,
		keywords:   []string{"news", "headlines", "latest on", "what's happening", "actualités", "actualites", "nouvelles", "quoi de neuf"},
		confidence: 0.85,
	},
	{
		kind:       models.IntentComprehensiveAnalysis,
		keywords:   []string{"analyse", "analyze", "analysis", "analyser", "full analysis", "analyse complète", "analyse complete", "evaluation", "évaluation", "deep dive", "report", "rapport", "due diligence"},
		confidence: 0.9,
	},
	{
		kind:       models.IntentComparativeAnalysis,
		keywords:   []string{"vs", "versus", "compare", "comparison", "comparer", "comparaison", "better than", "difference", "différence", "mieux"},
		confidence: 0.85,
	},
	{
		kind:       models.IntentEarnings,
		keywords:   []string{"earnings", "quarterly results", "results", "earnings call", "résultats", "resultats", "trimestriels", "annuels"},
		confidence: 0.9,
	},
	{
		kind:       models.IntentPortfolio,
		keywords:   []string{"portfolio", "watchlist", "my positions", "holdings", "portefeuille", "mes titres"},
		confidence: 0.85,
	},
	{
		kind:       models.IntentMarketOverview,
		keywords:   []string{"market", "markets", "indices", "sectors", "market overview", "marché", "marche", "secteurs", "vue globale"},
		confidence: 0.75,
	},
	{
		kind:       models.IntentRecommendation,
		keywords:   []string{"recommendation", "should i buy", "should i sell", "buy or sell", "rating", "ratings", "recommandation", "acheter", "vendre", "conserver", "avis"},
		confidence: 0.8,
	},
}

var (
	greetingWords = map[string]bool{
		"hi": true, "hello": true, "hey": true, "yo": true, "bonjour": true, "salut": true, "bonsoir": true,
		"coucou": true, "merci": true, "thanks": true, "thank": true, "thx": true, "ok": true, "okay": true,
		"cool": true, "great": true, "super": true, "parfait": true, "bravo": true, "nice": true, "perfect": true,
		"good": true, "morning": true, "evening": true, "afternoon": true, "awesome": true, "génial": true,
		"genial": true, "excellent": true,
	}

	// words that may surround a greeting without changing its meaning
	greetingFiller = map[string]bool{
		"you": true, "very": true, "much": true, "so": true, "a": true, "lot": true, "beaucoup": true,
		"bien": true, "à": true, "toi": true, "vous": true, "there": true, "again": true, "all": true,
	}

	capabilityPhrases = []string{
		"what can you do", "what do you do", "how can you help", "help me", "help", "your capabilities",
		"who are you", "que peux-tu faire", "que sais-tu faire", "tes capacités", "aide", "comment ça marche",
	}

	screeningPhrases = []string{
		"which stocks", "what stocks", "find stocks", "find me stocks", "stocks to buy", "best stocks",
		"top stocks", "screen", "screener", "undervalued stocks", "dividend stocks", "growth stocks",
		"value stocks", "quelles actions", "meilleures actions", "actions à acheter", "titres à dividendes",
	}

	vagueMarkers = []string{
		"what is", "what's a", "why", "explain", "what does", "qu'est-ce que", "pourquoi",
		"comment ça", "explique", "c'est quoi", "ça veut dire quoi",
	}
)

var toolsByKind = map[models.IntentKind][]string{
	models.IntentStockPrice:            {"stock-quote", "company-news"},
	models.IntentFundamentals:          {"company-fundamentals", "stock-quote"},
	models.IntentTechnicalAnalysis:     {"technical-indicators", "stock-quote"},
	models.IntentNews:                  {"company-news", "stock-quote"},
	models.IntentComprehensiveAnalysis: {"company-fundamentals", "stock-quote", "company-news", "technical-indicators", "analyst-recommendations"},
	models.IntentComparativeAnalysis:   {"company-fundamentals", "stock-quote", "company-news"},
	models.IntentEarnings:              {"earnings-calendar", "company-fundamentals", "company-news"},
	models.IntentPortfolio:             {"stock-quote", "company-news"},
	models.IntentMarketOverview:        {"market-overview", "company-news"},
	models.IntentRecommendation:        {"company-fundamentals", "analyst-recommendations", "stock-quote", "company-news"},
	models.IntentScreening:             {"stock-screener", "market-overview"},
	models.IntentGeneral:               {"market-overview"},
}

var recencyByKind = map[models.IntentKind]string{
	models.IntentStockPrice:            "hour",
	models.IntentNews:                  "day",
	models.IntentEarnings:              "month",
	models.IntentMarketOverview:        "day",
	models.IntentFundamentals:          "month",
	models.IntentTechnicalAnalysis:     "week",
	models.IntentComprehensiveAnalysis: "month",
	models.IntentComparativeAnalysis:   "month",
	models.IntentPortfolio:             "day",
	models.IntentRecommendation:        "month",
	models.IntentScreening:             "week",
}

var summaries = map[models.IntentKind]string{
	models.IntentStockPrice:            "current price of %s",
	models.IntentFundamentals:          "fundamental data for %s",
	models.IntentTechnicalAnalysis:     "technical analysis of %s",
	models.IntentNews:                  "recent news about %s",
	models.IntentComprehensiveAnalysis: "a full analysis of %s",
	models.IntentComparativeAnalysis:   "a comparison of %s",
	models.IntentEarnings:              "earnings results for %s",
	models.IntentPortfolio:             "a review of the portfolio holding %s",
	models.IntentRecommendation:        "a recommendation on %s",
}

// ToolsFor returns a copy of the default tool list for kind.
func ToolsFor(kind models.IntentKind) []string {
	return append([]string(nil), toolsByKind[kind]...)
}
