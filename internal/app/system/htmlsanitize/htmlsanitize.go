// Package htmlsanitize strips markup from user-supplied text before it
// is stored or echoed back.
package htmlsanitize

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag and attribute, keeping text content.
var strict = bluemonday.StrictPolicy()

// PlainText returns s with all HTML removed. Entities produced by the
// policy are decoded again so "R&D" stays "R&D".
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(strict.Sanitize(s))
}
