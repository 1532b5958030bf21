package dialog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransform strips combining marks after NFD decomposition, which folds
// the decomposable Turkish letters (ş, ğ, ç, ö, ü, İ) to their ASCII base.
var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// asciiReplacer covers the letters that do not decompose to base + mark.
var asciiReplacer = strings.NewReplacer(
	"ı", "i",
	"æ", "ae",
	"ß", "ss",
	"ø", "o",
)

// Normalize case-folds the utterance, strips diacritics, substitutes
// language-specific characters, replaces punctuation with spaces and
// collapses whitespace. Every heuristic matcher in this package operates on
// the normalized form; keyword tables are therefore written folded
// ("yarin", "toplanti").
func Normalize(s string) string {
	s = strings.ToLowerSpecial(unicode.TurkishCase, s)
	s = asciiReplacer.Replace(s)
	if folded, _, err := transform.String(foldTransform, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ':' || r == '#':
			// Kept for clock times ("15:00") and index references ("#2").
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// normTokens splits a normalized utterance into tokens.
func normTokens(norm string) []string {
	return strings.Fields(norm)
}

// containsWord reports whether the normalized text contains the word as a
// whole token.
func containsWord(norm, word string) bool {
	for _, tok := range normTokens(norm) {
		if tok == word {
			return true
		}
	}
	return false
}

// containsAny reports whether any of the normalized phrases occurs as a
// substring. Multi-word phrases are matched with surrounding spaces honored.
func containsAny(norm string, phrases ...string) bool {
	padded := " " + norm + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
