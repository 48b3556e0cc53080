package phonetics

import "math"

// Distance returns the token-level Levenshtein distance between a and b with
// unit cost for insertion, deletion and substitution.
func Distance(a, b Sequence) int {
	// keep the shorter sequence in the row
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i, ta := range a {
		curr[0] = i + 1
		for j, tb := range b {
			cost := 1
			if ta == tb {
				cost = 0
			}
			curr[j+1] = min(
				prev[j+1]+1, // deletion
				curr[j]+1,   // insertion
				prev[j]+cost,
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Similarity returns 1 - distance/max(len) in [0, 1]. An empty target scores
// 0 rather than a vacuous perfect match.
func Similarity(target, user Sequence) float64 {
	if len(target) == 0 {
		return 0
	}
	longest := max(len(target), len(user))
	return 1 - float64(Distance(target, user))/float64(longest)
}

// Score converts a similarity ratio to a 0-100 score rounded to one decimal.
func Score(similarity float64) float64 {
	return Round1(similarity * 100)
}

// Round1 rounds x to one decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}
