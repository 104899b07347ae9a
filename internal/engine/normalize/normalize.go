// Package normalize implements the single case-folding boundary for
// metadata fields (subject, topic, subtopic). The question body is never
// touched here.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()
var titleCaser = cases.Title(language.Und)

// Metadata applies the write/query-time transform: trim, then Unicode
// NFKC normalization, then casefold. Used for subject, topic and subtopic
// on write, on query filters, and nowhere else.
func Metadata(s string) string {
	s = strings.TrimSpace(s)
	s = norm.NFKC.String(s)
	return foldCaser.String(s)
}

// Display applies the read-out presentation transform: title case over
// whitespace-separated words. Used only when handing a normalized
// metadata field back to an external consumer.
func Display(s string) string {
	if s == "" {
		return s
	}
	return titleCaser.String(s)
}
