// Package entity lifts ticker symbols out of free text.
package entity

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"finance-agent/internal/models"
)

var (
	tickerSyntax = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z]{1,4})?$`)

	// a lowercase symbol is only trusted right after an explicit command word;
	// the suffix is part of the capture so "RY.TO" never yields a bare "RY"
	commandTicker = regexp.MustCompile(`(?i)\b(?:analy[sz]e|analysis of|prix|price|quote|cours|news|rsi|macd|compare|comparer|ticker)\s+(?:(?:of|for|de|du|pour)\s+)?\$?([a-z]{1,5}(?:\.[a-z]{1,4})?)\b`)
)

// Extractor validates candidate symbols against a deny-list.
type Extractor struct {
	deny      map[string]struct{}
	companies []companyPattern
}

type companyPattern struct {
	re     *regexp.Regexp
	ticker string
}

// New returns an extractor using DefaultDenyList plus extra.
func New(extra ...string) *Extractor {
	deny := make(map[string]struct{}, len(DefaultDenyList)+len(extra))
	for _, w := range DefaultDenyList {
		deny[w] = struct{}{}
	}
	for _, w := range extra {
		if w = strings.ToUpper(strings.TrimSpace(w)); w != "" {
			deny[w] = struct{}{}
		}
	}

	names := make([]string, 0, len(companyTickers))
	for name := range companyTickers {
		names = append(names, name)
	}
	sort.Strings(names)

	companies := make([]companyPattern, 0, len(names))
	for _, name := range names {
		companies = append(companies, companyPattern{
			re:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`),
			ticker: companyTickers[name],
		})
	}

	return &Extractor{deny: deny, companies: companies}
}

var defaultExtractor = New()

// IsValidTicker checks token against the symbol syntax and the default deny-list.
func IsValidTicker(token string) bool {
	return defaultExtractor.IsValidTicker(token)
}

// Extract runs the default extractor.
func Extract(text string) []string {
	return defaultExtractor.Extract(text)
}

func (e *Extractor) IsValidTicker(token string) bool {
	return e.verdict(token) == ""
}

func (e *Extractor) verdict(token string) string {
	if !tickerSyntax.MatchString(token) {
		return models.RejectSyntax
	}
	base := token
	if i := strings.IndexByte(token, '.'); i > 0 {
		base = token[:i]
	}
	if _, denied := e.deny[base]; denied {
		return models.RejectDenyList
	}
	if _, denied := e.deny[token]; denied {
		return models.RejectDenyList
	}
	return ""
}

// Candidates returns every ticker-shaped token in text with its verdict, in text order.
func (e *Extractor) Candidates(text string) []models.CandidateEntity {
	var out []models.CandidateEntity
	for _, tok := range tokenize(text) {
		if !looksLikeSymbol(tok.value) {
			continue
		}
		reason := e.verdict(tok.value)
		out = append(out, models.CandidateEntity{
			Token:    tok.value,
			Accepted: reason == "",
			Reason:   reason,
			Position: tok.pos,
		})
	}
	return out
}

// Extract returns the validated symbols of text, deduplicated, in order of appearance.
func (e *Extractor) Extract(text string) []string {
	type hit struct {
		ticker string
		pos    int
	}
	var hits []hit

	for _, c := range e.Candidates(text) {
		if c.Accepted {
			hits = append(hits, hit{c.Token, c.Position})
		}
	}

	for _, m := range commandTicker.FindAllStringSubmatchIndex(text, -1) {
		word := text[m[2]:m[3]]
		base := word
		if i := strings.IndexByte(word, '.'); i > 0 {
			base = word[:i]
		}
		if _, isCompany := companyTickers[strings.ToLower(base)]; isCompany {
			continue
		}
		token := strings.ToUpper(word)
		if e.IsValidTicker(token) {
			hits = append(hits, hit{token, m[2]})
		}
	}

	for _, c := range e.companies {
		if loc := c.re.FindStringIndex(text); loc != nil && e.IsValidTicker(c.ticker) {
			hits = append(hits, hit{c.ticker, loc[0]})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]struct{}, len(hits))
	tickers := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, dup := seen[h.ticker]; dup {
			continue
		}
		seen[h.ticker] = struct{}{}
		tickers = append(tickers, h.ticker)
	}
	return tickers
}

// Normalize trims, strips a cashtag prefix and uppercases a user-supplied symbol.
func Normalize(token string) string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(token), "$"))
}

type token struct {
	value string
	pos   int
}

// tokenize splits on anything that is not a letter, digit or dot. Words with
// accented letters stay whole so they never produce an ASCII fragment.
func tokenize(text string) []token {
	var out []token
	start := -1
	flush := func(end int) {
		if start >= 0 {
			v := strings.Trim(text[start:end], ".")
			if v != "" {
				out = append(out, token{value: v, pos: start + strings.Index(text[start:end], v)})
			}
			start = -1
		}
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return out
}

// looksLikeSymbol keeps all-uppercase tokens so ordinary words are not reported as candidates.
func looksLikeSymbol(tok string) bool {
	hasLetter := false
	for _, r := range tok {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter && len(tok) <= 10
}
