// Package sanitize strips markup from user supplied text before it is stored.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxPasses = 8

var strict = bluemonday.StrictPolicy()

// Text removes every HTML element and returns plain text. Entity-encoded
// markup is decoded and stripped again until the output is stable, so encoded
// tags never come back as live ones.
func Text(raw string) string {
	current := raw
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(current))
		if next == current {
			return strings.TrimSpace(next)
		}
		current = next
	}
	// Still changing after maxPasses: keep the escaped form.
	return strings.TrimSpace(strict.Sanitize(current))
}
