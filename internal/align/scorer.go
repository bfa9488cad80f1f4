package align

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/unicode/norm"
)

// Scorer names accepted by [SelectScorer].
const (
	ScorerTokenSet = "token_set"
	ScorerRatio    = "ratio"
)

// Scorer computes a similarity score in [0,100] between two strings.
// Implementations must be safe for concurrent use.
type Scorer interface {
	// Name identifies the strategy in logs and the health endpoint.
	Name() string

	// Score returns the similarity of a and b. 100 means identical under the
	// strategy's notion of equality.
	Score(a, b string) float64
}

// SelectScorer returns the scorer registered under name. An empty name
// selects the token-set scorer. An unknown name returns the character-ratio
// scorer and false so that the caller can warn about the downgrade.
func SelectScorer(name string) (Scorer, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ScorerTokenSet:
		return TokenSetScorer{}, true
	case ScorerRatio:
		return RatioScorer{}, true
	default:
		return RatioScorer{}, false
	}
}

// TokenSetScorer compares strings as sets of words, ignoring word order,
// duplicates, case and punctuation. Extra words on one side that the other
// side lacks entirely do not lower the score below what the shared words
// earn: if one token set contains the other the score is 100.
type TokenSetScorer struct{}

var _ Scorer = TokenSetScorer{}

// Name implements [Scorer].
func (TokenSetScorer) Name() string { return ScorerTokenSet }

// Score implements [Scorer].
func (TokenSetScorer) Score(a, b string) float64 {
	ta := tokenSet(Preprocess(a))
	tb := tokenSet(Preprocess(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter, diffAB, diffBA := partition(ta, tb)
	if len(inter) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}

	abJoined := strings.Join(diffAB, " ")
	baJoined := strings.Join(diffBA, " ")
	abLen := utf8.RuneCountInString(abJoined)
	baLen := utf8.RuneCountInString(baJoined)
	sectLen := utf8.RuneCountInString(strings.Join(inter, " "))

	// The intersection is conceptually prefixed to both differences, joined
	// by a single space when it is non-empty.
	sep := 0
	if sectLen > 0 {
		sep = 1
	}
	sectABLen := sectLen + sep + abLen
	sectBALen := sectLen + sep + baLen

	lcs := 0
	if abLen > 0 && baLen > 0 {
		lcs = matchr.LongestCommonSubsequence(abJoined, baJoined)
	}
	result := normDistance(abLen+baLen-2*lcs, sectABLen+sectBALen)
	if sectLen == 0 {
		return result
	}

	sectAB := normDistance(sep+abLen, sectLen+sectABLen)
	sectBA := normDistance(sep+baLen, sectLen+sectBALen)
	return max(result, sectAB, sectBA)
}

// RatioScorer is the character-level fallback: the LCS ratio of the two
// trimmed strings, case-sensitive and order-sensitive.
type RatioScorer struct{}

var _ Scorer = RatioScorer{}

// Name implements [Scorer].
func (RatioScorer) Name() string { return ScorerRatio }

// Score implements [Scorer].
func (RatioScorer) Score(a, b string) float64 {
	return indelRatio(
		norm.NFC.String(strings.TrimSpace(a)),
		norm.NFC.String(strings.TrimSpace(b)),
	)
}

// partition splits two sorted, de-duplicated token slices into their
// intersection and the two one-sided differences, each still sorted.
func partition(a, b []string) (inter, onlyA, onlyB []string) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter = append(inter, a[i])
			i++
			j++
		case a[i] < b[j]:
			onlyA = append(onlyA, a[i])
			i++
		default:
			onlyB = append(onlyB, b[j])
			j++
		}
	}
	onlyA = append(onlyA, a[i:]...)
	onlyB = append(onlyB, b[j:]...)
	return inter, onlyA, onlyB
}

// normDistance converts an indel distance over a combined length into a
// similarity percentage.
func normDistance(dist, lensum int) float64 {
	if lensum == 0 {
		return 100
	}
	return 100 - 100*float64(dist)/float64(lensum)
}
