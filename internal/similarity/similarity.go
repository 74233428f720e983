// Package similarity scores how alike two entity names are and finds
// previously used names that a freshly entered one probably refers to.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// Threshold is the minimum score for a name to be offered as a match.
	Threshold = 0.8
	// HighConfidence is the minimum score for a match to be applied without asking.
	HighConfidence = 0.9
)

// Fold lowercases s and strips diacritics, keeping punctuation.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

// Normalize lowercases s, strips diacritics and punctuation, and trims it.
func Normalize(s string) string {
	stripped := Fold(s)

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Similarity returns a score in [0,1] for a and b. Two strings that are
// equal after normalization score 1, including two empty strings.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}

	la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	if la == 0 || lb == 0 {
		return 0
	}

	longer, shorter := la, lb
	if shorter > longer {
		longer, shorter = shorter, longer
	}

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return float64(shorter) / float64(longer)
	}

	dist := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(dist)/float64(longer)
}
