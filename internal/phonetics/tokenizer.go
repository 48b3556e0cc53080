// Package phonetics segments IPA transcriptions into phoneme tokens and
// compares token sequences.
package phonetics

import (
	"sort"
	"strings"
	"unicode"
)

// Token is one phoneme or phoneme cluster, e.g. "ʃt", "ç" or "y".
type Token = string

// Sequence is an ordered list of tokens in pronunciation order. An empty
// sequence is valid and means "no data".
type Sequence []Token

// String joins the tokens without separators.
func (s Sequence) String() string {
	return strings.Join(s, "")
}

// Equal reports whether s and other hold the same tokens in the same order.
func (s Sequence) Equal(other Sequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// clusterTable lists the multi-character phonemes that are kept together.
var clusterTable = []string{
	"aɪ", "aʊ", "ɔɪ", // diphthongs
	"ts", "tʃ", "pf", // affricates
	"ʃt", "ʃp", // consonant clusters
	"ŋk", "ŋɡ", // nasal + stop
}

// clusters holds clusterTable as rune slices, longest first.
var clusters = buildClusters(clusterTable)

func buildClusters(table []string) [][]rune {
	out := make([][]rune, 0, len(table))
	for _, c := range table {
		out = append(out, []rune(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i]) > len(out[j])
	})
	return out
}

// Clusters returns a copy of the cluster table.
func Clusters() []string {
	out := make([]string, len(clusterTable))
	copy(out, clusterTable)
	return out
}

// stripped reports characters removed before segmentation: stress marks and
// syllable boundaries. Whitespace is handled separately.
func stripped(r rune) bool {
	return r == 'ˈ' || r == 'ˌ' || r == '.'
}

// zeroWidth reports length marks and tie bars, which never become tokens.
func zeroWidth(r rune) bool {
	return r == 'ː' || r == '͡' || r == 'ˑ'
}

// Tokenize splits an IPA string into phoneme tokens. Known clusters win over
// their single characters, and unknown characters degrade to one token each,
// so Tokenize never fails.
func Tokenize(ipa string) Sequence {
	runes := make([]rune, 0, len(ipa))
	for _, r := range ipa {
		if stripped(r) || unicode.IsSpace(r) {
			continue
		}
		runes = append(runes, r)
	}

	tokens := make(Sequence, 0, len(runes))
	for i := 0; i < len(runes); {
		if c := matchCluster(runes[i:]); c != nil {
			tokens = append(tokens, string(c))
			i += len(c)
			continue
		}
		if !zeroWidth(runes[i]) {
			tokens = append(tokens, string(runes[i]))
		}
		i++
	}
	return tokens
}

func matchCluster(rest []rune) []rune {
	for _, c := range clusters {
		if hasPrefix(rest, c) {
			return c
		}
	}
	return nil
}

func hasPrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}
