package entity

// DefaultDenyList holds short all-caps-compatible words that collide with ticker syntax.
var DefaultDenyList = []string{
	// currencies
	"USD", "CAD", "EUR", "GBP", "JPY", "CHF", "AUD", "CNY", "INR", "BRL",
	// job titles
	"CEO", "CFO", "CTO", "COO", "CIO", "VP", "SVP", "EVP", "MD", "GM",
	// finance acronyms and broad index funds
	"IPO", "ETF", "ETFS", "REIT", "SPY", "QQQ", "IWM", "EEM", "VTI", "VOO",
	"PE", "PB", "PS", "EPS", "ROE", "ROA", "FCF", "YTD", "YOY", "TTM",
	"CAGR", "NAV", "AUM", "EV", "WACC", "IRR", "NPV", "GDP", "PIB", "CPI",
	// technical indicators
	"RSI", "MACD", "SMA", "EMA", "VWAP", "ATR", "ADX", "OBV", "MFI",
	// institutions and tech terms
	"AI", "ML", "API", "SDK", "AWS", "GDPR", "SEC", "FED", "ECB", "BOC", "FOMC",
	// time zones, schedules, shorthand
	"AMC", "BMO", "TBA", "TBD", "EST", "PST", "GMT", "UTC", "WIP", "FYI", "ASAP",
	// quarters and halves
	"Q1", "Q2", "Q3", "Q4", "FY", "H1", "H2",
	// intent keywords
	"NEWS", "TAUX", "AIDE", "HELP", "VALUE", "STOCK", "PRIX", "COURS", "CAP", "CAPS",
	"LARGE", "SMALL", "MID", "TYPE", "TYPES", "LISTE", "FONDS", "FOND", "TITRE",
	// politeness and reactions
	"OK", "OKAY", "YES", "NO", "WOW", "SUPER", "NICE", "COOL", "GREAT",
	"MERCI", "THANK", "THANX", "THX", "BRAVO", "BIEN", "BON", "LOL", "MDR",
	"HAHA", "HEHE", "HIHI", "HELLO", "HI", "HEY", "SALUT", "YO",
	// English function words
	"A", "I", "AN", "AND", "OR", "THE", "IS", "IT", "ITS", "TO", "OF", "IN",
	"ON", "AT", "BY", "FOR", "WITH", "FROM", "AS", "BE", "ARE", "WAS", "DO",
	"DOES", "ME", "MY", "WE", "US", "YOU", "HOW", "WHAT", "WHY", "WHO", "WHEN",
	"VS", "ALL", "ANY", "BUY", "SELL", "HOLD", "NOW", "TODAY", "NEW", "TOP", "BEST",
	"ABOUT", "THIS", "THAT", "THOSE", "OUR", "SOME", "MORE", "LESS", "WILL", "CAN",
	"HAS", "HAVE", "HAD", "NOT", "BUT", "IF", "SO", "UP", "DOWN", "OUT", "ALSO",
	"JUST", "ONLY", "THAN", "THEN", "INTO", "OVER", "LAST", "NEXT", "WEEK", "YEAR",
	"MONTH", "DAY", "DAILY", "DATA", "INFO", "STATS", "THEIR", "THEY", "HE", "SHE",
	"HIS", "HER", "BOTH", "EACH", "PLEASE", "APPLE",
	// French function words
	"DE", "DES", "LES", "LA", "LE", "UN", "UNE", "DU", "AU", "AUX", "ET", "OU",
	"QUEL", "QUOI", "QUI", "QUE", "DONT", "TU", "TE", "NOUS", "VOUS", "IL",
	"ELLE", "ILS", "ON", "MON", "MA", "MES", "TON", "TA", "TES", "SON", "SA",
	"SES", "LEUR", "CE", "CET", "CES", "SONT", "SERA", "FAIT", "FAIS", "VEUX",
	"VEUT", "PEUT", "PEUX", "DOIT", "DOIS", "DIT", "DIS", "POUR", "DANS", "AVEC",
	"SANS", "SUR", "SOUS", "PAR", "PAS", "PLUS", "TRES", "MAL", "COMME", "DONC",
	"MAIS", "PUIS", "NI", "VERS", "CHEZ", "SELON", "AVANT", "APRES", "TOUS",
	"TOUT", "VRAI", "FAUX", "BONNE", "HAUT", "BAS", "GRAND", "AN", "ANS", "JOUR",
	"MOIS", "HIER", "QUELLE", "QUELS", "ELLES", "NOTRE", "VOTRE", "LEURS", "CETTE",
	"FAIRE", "ETRE", "MOINS", "ENTRE", "PARMI", "SAUF", "TOUTE", "PETIT", "QUAND",
	"JOURS", "COTE", "TITRES", "DEMAIN", "DEPUIS", "PARFAIT", "GENIAL",
	// plural and long forms; over-length tokens fail the syntax check, listed so extra lists stay in sync
	"THANKS", "GROWTH", "DIVIDEND", "EBITDA", "STOCKS", "ACTION", "ACTIONS", "SKILLS",
	// project names and people
	"EMMA", "SMS", "FMP", "TRUMP", "CHINE",
	// pronouns that follow command words ("compare them")
	"THEM", "THESE", "ONE", "ONES", "OTHER",
	// commodities and sectors ("price of oil")
	"OIL", "GOLD", "GAS", "CRUDE", "BOND", "BONDS", "CORN", "WHEAT", "TECH", "BANK", "BANKS",
}
