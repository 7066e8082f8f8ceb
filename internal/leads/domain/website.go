package domain

import (
	"regexp"
	"strings"
)

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	wwwPrefix    = regexp.MustCompile(`^www\.`)
	trailSlash   = regexp.MustCompile(`/$`)
)

// NormalizeWebsite canonicalizes a website for identity comparison.
// The steps run in a fixed order: lowercase, drop http(s)://, drop a leading
// www., drop one trailing slash, trim. Empty input normalizes to "".
func NormalizeWebsite(raw string) string {
	s := strings.ToLower(raw)
	s = schemePrefix.ReplaceAllString(s, "")
	s = wwwPrefix.ReplaceAllString(s, "")
	s = trailSlash.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
