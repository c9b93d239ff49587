package agent

import (
	"strings"
	"unicode"

	"finance-agent/internal/models"
)

const capabilitiesReply = "I can give you live quotes, technical indicators, fundamentals, analyst " +
	"recommendations, earnings dates, company news and market overviews, compare several " +
	"companies, or screen for stocks by sector, dividend, value or growth. Try \"Analyse AAPL\"."

var thanksWords = []string{"merci", "thanks", "thank", "thx", "bravo"}

// cannedReply answers conversational intents in the language the user wrote in.
func cannedReply(kind models.IntentKind, text string) string {
	if kind == models.IntentCapabilities {
		return capabilitiesReply
	}
	lower := strings.ToLower(text)
	french := containsWord(lower, "merci") || containsWord(lower, "bonjour") || containsWord(lower, "salut")
	for _, w := range thanksWords {
		if containsWord(lower, w) {
			if french {
				return "Avec plaisir ! Autre chose sur les marchés ?"
			}
			return "You're welcome! Anything else about the markets?"
		}
	}
	if french {
		return "Bonjour ! Posez-moi une question sur une action ou sur le marché."
	}
	return "Hello! Ask me about a stock, a company or the market."
}

func clarificationReply(intent models.Intent) string {
	if len(intent.ClarificationQuestions) > 0 {
		return intent.ClarificationQuestions[0]
	}
	return "Could you tell me which company or ticker you mean?"
}

func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if f == word {
			return true
		}
	}
	return false
}
