// Package sanitize strips markup from user-provided free text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxPasses bounds how many layers of entity encoding are peeled off.
const maxPasses = 8

var strict = bluemonday.StrictPolicy()

// Text removes every HTML element and attribute and returns plain text.
// Entities are decoded before each pass so encoded markup is stripped too.
// Input still changing after maxPasses is returned in its escaped form.
func Text(raw string) string {
	if raw == "" {
		return ""
	}
	current := raw
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(html.UnescapeString(current)))
		if next == current {
			return strings.TrimSpace(next)
		}
		current = next
	}
	return strings.TrimSpace(strict.Sanitize(current))
}

// OptionalText applies Text to a possibly nil value.
func OptionalText(raw *string) *string {
	if raw == nil {
		return nil
	}
	cleaned := Text(*raw)
	return &cleaned
}
