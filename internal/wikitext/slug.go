package wikitext

import (
	"regexp"
	"strings"
)

var (
	commentPattern  = regexp.MustCompile(`(?s)<!--.*?-->`)
	templatePattern = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	linkPattern     = regexp.MustCompile(`\[\[([^\[\]|]*)(?:\|([^\[\]]*))?\]\]`)
	extLinkPattern  = regexp.MustCompile(`\[(?:https?:)?//[^\s\]]+(?:\s+([^\]]*))?\]`)
	quotePattern    = regexp.MustCompile(`'{2,}`)
	tagPattern      = regexp.MustCompile(`</?[A-Za-z][^<>]*>`)
	slugSeparator   = regexp.MustCompile(`[\s\p{Z}\x{0085}_]+`)
)

// StripMarkup removes inline wikitext markup and keeps the text a reader
// would see: link labels, external link titles and tag contents survive,
// templates and comments do not.
func StripMarkup(s string) string {
	s = commentPattern.ReplaceAllString(s, "")
	// Templates nest; strip innermost first until nothing changes.
	for {
		next := templatePattern.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	s = linkPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := linkPattern.FindStringSubmatch(m)
		if sub[2] != "" {
			return sub[2]
		}
		return sub[1]
	})
	s = extLinkPattern.ReplaceAllString(s, "$1")
	s = quotePattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	return s
}

// Slug converts heading display text into the anchor identifier used to
// match it against a link fragment. Both sides of a comparison must go
// through Slug.
func Slug(heading string) string {
	s := StripMarkup(heading)
	s = slugSeparator.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
