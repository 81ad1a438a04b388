package parse

import (
	"regexp"
	"strings"
)

var colorCodeRe = regexp.MustCompile(`\{[0-9a-fA-F]{6}\}`)

// StripMarkup removes decorative {RRGGBB} color codes from an entity name
// and trims surrounding whitespace. Presence identifiers must go through
// this before being used as a key: the same world can be announced with
// different colors across polls.
func StripMarkup(name string) string {
	return strings.TrimSpace(colorCodeRe.ReplaceAllString(name, ""))
}
