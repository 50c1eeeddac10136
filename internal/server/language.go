package server

import (
	"golang.org/x/text/language"
)

// DefaultLanguage is used when the client states no usable preference.
const DefaultLanguage = "en"

// wildcard is what ParseAcceptLanguage makes of "*".
const wildcard = "mul"

// PreferredLanguage returns the language the client ranks highest in an
// Accept-Language header. ParseAcceptLanguage drops q=0 entries and sorts
// stably by weight, so equal weights keep header order.
func PreferredLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	best := tags[0].String()
	if tags[0] == language.Und || best == wildcard {
		return DefaultLanguage
	}
	return best
}
