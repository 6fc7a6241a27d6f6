// Package normalize trims and canonicalizes user input.
package normalize

import (
	"strings"

	"github.com/dalemusser/projecthub/internal/app/system/htmlsanitize"
)

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a person's name, preserving case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// GroupName strips markup and collapses runs of whitespace.
func GroupName(s string) string {
	return strings.Join(strings.Fields(htmlsanitize.PlainText(s)), " ")
}

// ID trims an identifier taken from a path or body.
func ID(s string) string {
	return strings.TrimSpace(s)
}

// QueryParam trims a query string value, preserving case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}

// GroupFilter maps the ?status= value of a course group listing onto one
// of "all", "full", "empty" or "incomplete". Unknown values mean "all".
func GroupFilter(s string) string {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "full", "empty", "incomplete":
		return v
	}
	return "all"
}
