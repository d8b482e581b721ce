package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TextAnalyzer provides the tokenization used for anchor scoring
type TextAnalyzer interface {
	// Tokenize splits text on whitespace into unique lowercase tokens
	Tokenize(text string) []string

	// Overlap scores how well search tokens match candidate tokens
	Overlap(search, candidate []string) float64
}

// DefaultTextAnalyzer implements TextAnalyzer with exact and partial token credit
type DefaultTextAnalyzer struct {
	minTokenLength     int
	partialMatchLength int
	partialCredit      float64
}

// NewDefaultTextAnalyzer creates an analyzer.
// Tokens shorter than minTokenLength are discarded; substring containment
// between tokens of at least partialMatchLength earns partialCredit.
func NewDefaultTextAnalyzer(minTokenLength, partialMatchLength int, partialCredit float64) *DefaultTextAnalyzer {
	return &DefaultTextAnalyzer{
		minTokenLength:     minTokenLength,
		partialMatchLength: partialMatchLength,
		partialCredit:      partialCredit,
	}
}

// Tokenize breaks text into unique lowercase tokens in first-seen order
func (ta *DefaultTextAnalyzer) Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))

	for _, f := range fields {
		// punctuation glued to a word is noise: "stack," "(budget)"
		word := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if utf8.RuneCountInString(word) < ta.minTokenLength || seen[word] {
			continue
		}
		seen[word] = true
		tokens = append(tokens, word)
	}

	return tokens
}

// Overlap returns the summed credit of search tokens divided by their count.
// An exact match earns 1; otherwise containment in either direction between
// long-enough tokens earns the partial credit. Each search token is credited once.
func (ta *DefaultTextAnalyzer) Overlap(search, candidate []string) float64 {
	if len(search) == 0 || len(candidate) == 0 {
		return 0
	}

	exact := make(map[string]bool, len(candidate))
	for _, c := range candidate {
		exact[c] = true
	}

	var total float64
	for _, s := range search {
		if exact[s] {
			total += 1
			continue
		}
		if utf8.RuneCountInString(s) < ta.partialMatchLength {
			continue
		}
		for _, c := range candidate {
			if utf8.RuneCountInString(c) < ta.partialMatchLength {
				continue
			}
			if strings.Contains(c, s) || strings.Contains(s, c) {
				total += ta.partialCredit
				break
			}
		}
	}

	return total / float64(len(search))
}
