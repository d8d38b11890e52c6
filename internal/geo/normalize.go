package geo

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a municipality name into its lookup key:
// diacritics stripped, lower case, inner whitespace collapsed.
// "Álvaro Obregón" and "alvaro  obregon" share the key "alvaro obregon".
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
