package fusion

import (
	"sort"
	"strings"
	"unicode"
)

const digestMaxChars = 200

// digest returns the first N characters of cleaned text, cutting on a rune
// boundary.
func digest(text string) string {
	runes := []rune(text)
	if len(runes) <= digestMaxChars {
		return text
	}
	return string(runes[:digestMaxChars])
}

// keywords returns the top-5 tokens by frequency, excluding stopwords and
// tokens shorter than 2 characters. Ties break by first appearance.
func keywords(text string, stopwords []string) []string {
	stop := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stop[strings.ToLower(w)] = struct{}{}
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, tok := range tokenize(text) {
		lower := strings.ToLower(tok)
		if len(lower) < 2 {
			continue
		}
		if _, skip := stop[lower]; skip {
			continue
		}
		if _, seen := counts[lower]; !seen {
			order = append(order, lower)
		}
		counts[lower]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > 5 {
		order = order[:5]
	}
	return order
}

// tokenize splits on runs of non-letter/non-digit characters.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// containsAny reports whether text contains any keyword, case insensitive.
func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
