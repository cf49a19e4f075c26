package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips markup from participant-supplied text and returns it as plain
// text. Entities produced by the policy are decoded again so names such as
// "D'Ávila" are stored as typed; anything rendered as HTML later is escaped
// by the template layer.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// Field prepares a value for a tab-separated line: markup stripped and tabs
// or line breaks collapsed to single spaces.
func Field(input string) string {
	cleaned := Text(input)
	return strings.Join(strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == '\t' || r == '\n' || r == '\r'
	}), " ")
}
