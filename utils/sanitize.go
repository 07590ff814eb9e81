package utils

import (
	"html"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// Posts are plain text, so no tag is allowed.
var strictPolicy = bluemonday.StrictPolicy()

// A '<' only opens a tag when a name, '/' or '!' follows and a '>' closes it.
var tagLike = regexp.MustCompile(`<[A-Za-z/!?][^>]*>`)

// ContainsMarkup reports whether s holds HTML that the strict policy would strip.
// Plain text such as "a<b", "R&D" or "&lt;script&gt;" is not markup.
func ContainsMarkup(s string) bool {
	if !tagLike.MatchString(s) {
		return false
	}
	return strictPolicy.Sanitize(s) != html.EscapeString(s)
}
