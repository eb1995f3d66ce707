package store

import (
	"regexp"
	"sort"
	"strings"
)

// tokenRegex matches alphanumeric runs; everything else is a separator.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// minTokenLength filters noise tokens ("a", single digits).
const minTokenLength = 2

// DefaultStopWords are common English function words excluded from the
// lexical index. Kept short on purpose: over-aggressive stop lists hurt
// recall for short queries.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "were", "will", "with",
}

// Tokenize splits text into normalized lexemes and their frequencies.
// Tokens are lowercased, short tokens and stop words are dropped.
func Tokenize(text string) map[string]int {
	freqs := make(map[string]int)
	for _, word := range tokenRegex.FindAllString(text, -1) {
		token := strings.ToLower(word)
		if len(token) < minTokenLength {
			continue
		}
		if _, stop := stopWordSet[token]; stop {
			continue
		}
		freqs[token]++
	}
	return freqs
}

// TokenizeQuery returns the distinct normalized tokens of a query in
// deterministic (sorted) order.
func TokenizeQuery(text string) []string {
	freqs := Tokenize(text)
	tokens := make([]string, 0, len(freqs))
	for token := range freqs {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

var stopWordSet = buildStopWordSet(DefaultStopWords)

func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
