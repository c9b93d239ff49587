package intent

import (
	"strings"
	"unicode"
)

// normalize lowercases text and turns punctuation into spaces, keeping the
// characters that appear inside keywords.
func normalize(text string) string {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range text {
		keep := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '/' || r == '-'
		if !keep {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// containsPhrase matches whole words on text produced by normalize.
func containsPhrase(norm, phrase string) bool {
	return strings.Contains(norm, " "+phrase+" ")
}

func countMatches(norm string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if containsPhrase(norm, p) {
			n++
		}
	}
	return n
}

func words(norm string) []string {
	return strings.Fields(norm)
}
