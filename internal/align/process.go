package align

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Preprocess prepares a string for token comparison: NFC normalisation,
// Unicode case folding, every rune that is not a letter, mark or number
// replaced by a space, and surrounding whitespace trimmed.
func Preprocess(s string) string {
	// cases.Caser is stateful and must not be shared between goroutines.
	s = cases.Fold().String(norm.NFC.String(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
			return r
		}
		return ' '
	}, s)
	return strings.TrimSpace(s)
}

// tokenSet splits s on whitespace and returns its distinct tokens in sorted
// order.
func tokenSet(s string) []string {
	fields := strings.Fields(s)
	slices.Sort(fields)
	return slices.Compact(fields)
}

// indelRatio is the normalised insertion/deletion similarity of a and b in
// [0,100], measured in runes: 200*LCS / (len(a)+len(b)).
func indelRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la+lb == 0 {
		return 100
	}
	lcs := matchr.LongestCommonSubsequence(a, b)
	return 200 * float64(lcs) / float64(la+lb)
}
