// Package analytics computes the derived moderation and behavior
// aggregates: per-message sentiment, per-user behavior metrics, risk
// scores, system-wide chat analytics, and composed reports.
package analytics

import (
	"sort"
	"strings"
)

// Sentiment scoring is a deliberate lexicon heuristic, not a trained
// model. Scores are advisory; treat them as a coarse trend signal only.
var positiveWords = map[string]bool{
	"good": true, "great": true, "awesome": true, "excellent": true,
	"love": true, "like": true, "happy": true, "thanks": true,
	"thank": true, "nice": true, "cool": true, "amazing": true,
	"wonderful": true, "best": true, "fun": true, "glad": true,
	"perfect": true, "helpful": true, "welcome": true, "win": true,
}

var negativeWords = map[string]bool{
	"bad": true, "terrible": true, "awful": true, "hate": true,
	"angry": true, "sad": true, "worst": true, "horrible": true,
	"stupid": true, "annoying": true, "useless": true, "worthless": true,
	"boring": true, "broken": true, "wrong": true, "fail": true,
	"ugly": true, "disgusting": true, "lose": true, "poor": true,
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "him": true, "his": true, "how": true, "its": true,
	"may": true, "new": true, "now": true, "old": true, "see": true,
	"two": true, "who": true, "did": true, "get": true, "let": true,
	"say": true, "she": true, "too": true, "use": true, "that": true,
	"this": true, "with": true, "have": true, "from": true, "they": true,
	"will": true, "would": true, "there": true, "their": true, "what": true,
	"about": true, "which": true, "when": true, "your": true, "just": true,
	"them": true, "some": true, "into": true, "than": true, "then": true,
	"been": true, "were": true, "very": true, "also": true, "like": true,
}

// Tokenize lowercases, strips punctuation, and splits on whitespace.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '\t', r == '\n':
			return r
		default:
			return ' '
		}
	}, strings.ToLower(text))
	return strings.Fields(cleaned)
}

// Sentiment returns the lexicon score (#positive - #negative) and the
// comparative (score over token count, 0 for empty text).
func Sentiment(text string) (score int, comparative float64) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 0, 0
	}
	for _, tok := range tokens {
		if positiveWords[tok] {
			score++
		}
		if negativeWords[tok] {
			score--
		}
	}
	return score, float64(score) / float64(len(tokens))
}

// KeywordCounts frequency-ranks the keywords of texts: stop words and
// tokens of length two or less are dropped, ties break alphabetically so
// the ranking is stable.
func KeywordCounts(texts []string, top int) []keywordEntry {
	counts := map[string]int{}
	for _, text := range texts {
		for _, tok := range Tokenize(text) {
			if len(tok) <= 2 || stopWords[tok] {
				continue
			}
			counts[tok]++
		}
	}

	entries := make([]keywordEntry, 0, len(counts))
	for word, count := range counts {
		entries = append(entries, keywordEntry{word, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Word < entries[j].Word
	})
	if len(entries) > top {
		entries = entries[:top]
	}
	return entries
}

type keywordEntry struct {
	Word  string
	Count int
}
