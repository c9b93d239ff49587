package entity

// companyTickers maps lowercase company names to their primary listing.
var companyTickers = map[string]string{
	"apple":               "AAPL",
	"microsoft":           "MSFT",
	"google":              "GOOGL",
	"alphabet":            "GOOGL",
	"amazon":              "AMZN",
	"tesla":               "TSLA",
	"meta":                "META",
	"facebook":            "META",
	"nvidia":              "NVDA",
	"amd":                 "AMD",
	"intel":               "INTC",
	"netflix":             "NFLX",
	"disney":              "DIS",
	"jpmorgan":            "JPM",
	"goldman sachs":       "GS",
	"morgan stanley":      "MS",
	"wells fargo":         "WFC",
	"citigroup":           "C",
	"bank of america":     "BAC",
	"american express":    "AXP",
	"mastercard":          "MA",
	"paypal":              "PYPL",
	"coca-cola":           "KO",
	"coca cola":           "KO",
	"pepsico":             "PEP",
	"mcdonalds":           "MCD",
	"mcdonald's":          "MCD",
	"nike":                "NKE",
	"walmart":             "WMT",
	"costco":              "COST",
	"home depot":          "HD",
	"starbucks":           "SBUX",
	"boeing":              "BA",
	"caterpillar":         "CAT",
	"general electric":    "GE",
	"honeywell":           "HON",
	"exxon":               "XOM",
	"chevron":             "CVX",
	"pfizer":              "PFE",
	"merck":               "MRK",
	"abbvie":              "ABBV",
	"eli lilly":           "LLY",
	"unitedhealth":        "UNH",
	"accenture":           "ACN",
	"ibm":                 "IBM",
	"oracle":              "ORCL",
	"salesforce":          "CRM",
	"adobe":               "ADBE",
	"cisco":               "CSCO",
	"qualcomm":            "QCOM",
	"shopify":             "SHOP",
	"enbridge":            "ENB",
	"royal bank":          "RY",
	"td bank":             "TD",
	"bank of nova scotia": "BNS",
}
