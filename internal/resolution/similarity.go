package resolution

import (
	"strings"

	"github.com/agnivade/levenshtein"
	textlevenshtein "github.com/texttheater/golang-levenshtein/levenshtein"
)

// ratioOptions reproduces the classic edit-distance ratio formula (insertions
// and deletions cost 1, substitutions cost 2), the same normalization the
// reference matching engine's calculateLevenshteinSimilarity builds on top of
// agnivade/levenshtein for a plain distance. It is used here wherever the
// source computes fuzz.ratio rather than fuzz.partial_ratio.
var ratioOptions = textlevenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 2,
	Matches: textlevenshtein.IdenticalRunes,
}

// ratio returns a 0-100 similarity score between two strings using whole-string
// edit distance, equivalent to fuzz.ratio in the source implementation.
func ratio(a, b string) float64 {
	if a == b {
		if a == "" {
			return 100
		}
		return 100
	}
	lenSum := len([]rune(a)) + len([]rune(b))
	if lenSum == 0 {
		return 100
	}
	dist := textlevenshtein.DistanceForStrings([]rune(a), []rune(b), ratioOptions)
	score := float64(lenSum-dist) / float64(lenSum) * 100
	if score < 0 {
		score = 0
	}
	return score
}

// partialRatio returns a 0-100 similarity score between two strings using the
// best alignment of the shorter string against any contiguous substring of
// the longer one (SPEC_FULL.md §4.1, §9). This is the load-bearing metric for
// clustering, medoid election, and similarity discovery; the acronym merge
// pass uses ratio instead.
func partialRatio(a, b string) float64 {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	shortLen := len(shorter)
	longLen := len(longer)

	if shortLen == 0 {
		return 0
	}
	if shortLen == longLen {
		return editSimilarity(string(shorter), string(longer))
	}

	best := 0.0
	for start := 0; start+shortLen <= longLen; start++ {
		window := string(longer[start : start+shortLen])
		score := editSimilarity(string(shorter), window)
		if score > best {
			best = score
		}
	}
	return best
}

// editSimilarity scores two equal-or-near-equal-length strings by normalized
// edit distance, the building block the spec's partial-ratio definition
// calls "normalized_edit_similarity(s,u)".
func editSimilarity(s, u string) float64 {
	maxLen := len([]rune(s))
	if l := len([]rune(u)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(s, u)
	score := (1.0 - float64(dist)/float64(maxLen)) * 100
	if score < 0 {
		score = 0
	}
	return score
}

// attributeSimilarity scores two scalar attribute values: exact match after
// lowercasing the string form scores 1.0, otherwise fuzz.ratio/100.
func attributeSimilarity(a, b interface{}) float64 {
	as := strings.ToLower(toComparableString(a))
	bs := strings.ToLower(toComparableString(b))
	if as == bs {
		return 1.0
	}
	return ratio(as, bs) / 100
}

func toComparableString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return stringify(v)
	}
}
