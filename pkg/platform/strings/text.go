// Package strings provides text normalization helpers shared by policy
// matching and fingerprinting.
package strings

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks, so "Trânsito em JULGADO"
// becomes "transito em julgado". Invalid UTF-8 is returned lowercased as-is.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// NFC returns s in Unicode normalization form C.
func NFC(s string) string {
	return norm.NFC.String(s)
}

// ContainsAny reports the first keyword found in text. Both sides are folded,
// so callers may pass raw text and raw keywords.
func ContainsAny(text string, keywords []string) (string, bool) {
	if text == "" || len(keywords) == 0 {
		return "", false
	}
	folded := Fold(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(folded, Fold(kw)) {
			return kw, true
		}
	}
	return "", false
}

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// NormalizeKeywords trims, folds and deduplicates a keyword list, so
// "Óbito" and "obito" collapse into one entry.
func NormalizeKeywords(values []string) []string {
	return dedupe(values, func(v string) string {
		return Fold(strings.TrimSpace(v))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}

	return result
}
