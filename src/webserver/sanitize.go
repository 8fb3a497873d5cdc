package webserver

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// cleanText strips markup from user text. Entities escaped by the policy are
// restored since responses are JSON, not HTML.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
