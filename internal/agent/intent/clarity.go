package intent

// clarity scores how self-explanatory a request is on a 0..10 scale. Requests
// scoring under the configured clarity threshold are worth a remote opinion.
func clarity(norm string, entityCount int, keywordMatched bool, contextTickers int) int {
	score := 5
	if entityCount > 0 {
		score += 2
	}
	if keywordMatched {
		score += 2
	}
	if contextTickers > 0 {
		score++
	}
	if countMatches(norm, vagueMarkers) > 0 {
		score -= 3
	}

	wc := len(words(norm))
	if wc < 5 && entityCount == 0 {
		score -= 2
	}
	if wc > 20 && !keywordMatched {
		score--
	}

	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
