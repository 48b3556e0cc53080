package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// closeMatchThreshold is the minimum word similarity of a "close match".
const closeMatchThreshold = 0.6

// Normalize lowercases s, removes punctuation and collapses whitespace.
func Normalize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(cleaned), " ")
}

// WordSimilarity returns the character-level edit-distance similarity of a
// and b in [0, 1]. Either string being empty yields 0.
func WordSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 1 - float64(matchr.Levenshtein(a, b))/float64(longest)
}

// containsWord reports whether target occurs in text as whole words.
func containsWord(text, target string) bool {
	if target == "" || text == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+target+" ")
}

// bestWordSimilarity returns the highest similarity between target and any
// word of text.
func bestWordSimilarity(text, target string) float64 {
	best := 0.0
	for _, w := range strings.Fields(text) {
		best = max(best, WordSimilarity(w, target))
	}
	return best
}
