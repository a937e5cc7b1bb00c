package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes combining marks after canonical decomposition, which
// covers both Latin diacritics and Arabic harakat. Hamza-carrying alef forms
// decompose to bare alef plus a mark, so they fold here as well.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText lowercases, strips diacritics, and folds Arabic letter
// variants so keyword matching and content hashing see one spelling per word.
func NormalizeText(text string) string {
	text = strings.ToLower(text)

	if stripped, _, err := transform.String(stripMarks, text); err == nil {
		text = stripped
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case 'أ', 'إ', 'آ':
			b.WriteRune('ا')
		case 'ة':
			b.WriteRune('ه')
		case 'ى':
			b.WriteRune('ي')
		case 'ـ': // tatweel
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// ContentHash fingerprints a candidate by its normalized identity tuple.
// Two extractions of the same opportunity from different raw text produce
// the same hash, which is what the dedup invariant keys on.
func ContentHash(title, description, company, location string) string {
	parts := []string{title, description, company, location}
	for i, part := range parts {
		parts[i] = NormalizeText(CleanText(part))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
