package render

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips feed HTML down to plain text.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer uses the strict policy: every tag is removed.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText removes markup, decodes entities and collapses whitespace.
func (s *Sanitizer) PlainText(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.Join(strings.Fields(html.UnescapeString(stripped)), " ")
}

// Excerpt returns at most limit runes of plain text, cut at a word boundary.
func (s *Sanitizer) Excerpt(raw string, limit int) string {
	text := s.PlainText(raw)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:limit])
	if idx := strings.LastIndex(cut, " "); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}
