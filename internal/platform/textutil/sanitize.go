package textutil

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
)

// MaxNoteLength caps free-text notes, reasons and titles (in runes).
const MaxNoteLength = 2000

var notePolicy = bluemonday.StrictPolicy()

// SanitizeNote strips markup from free text, collapses whitespace and truncates to MaxNoteLength.
// The result is plain text: entities the policy emits are decoded, so escape it when rendering.
func SanitizeNote(raw string) string {
	cleaned := html.UnescapeString(notePolicy.Sanitize(raw))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if utf8.RuneCountInString(cleaned) <= MaxNoteLength {
		return cleaned
	}
	runes := []rune(cleaned)
	return string(runes[:MaxNoteLength])
}

// FoldCity returns the case-folded, whitespace-normalised form of a city name.
func FoldCity(city string) string {
	trimmed := strings.Join(strings.Fields(city), " ")
	if trimmed == "" {
		return ""
	}
	return cases.Fold().String(trimmed)
}

// SameCity reports whether two city names match ignoring case and spacing.
func SameCity(a, b string) bool {
	return FoldCity(a) == FoldCity(b)
}

// CitiesConflict reports whether both cities are set and differ.
func CitiesConflict(a, b string) bool {
	fa, fb := FoldCity(a), FoldCity(b)
	return fa != "" && fb != "" && fa != fb
}
