package wikitext

import (
	"regexp"
	"strings"
)

var (
	// [[User:Name|label]] and [[User talk:Name|label]]; the piped label is
	// part of the signature convention and therefore required.
	userLinkPattern = regexp.MustCompile(`(?i)\[\[\s*User(?:[ _]talk)?\s*:\s*([^|\]]+)\|[^\]]*\]\]`)

	// {{user|Name}}
	userTemplatePattern = regexp.MustCompile(`(?i)\{\{\s*user\|([^}|]+)\s*\}\}`)

	// [[Target]] or [[Target|Text]]
	wikilinkPattern = regexp.MustCompile(`\[\[([^\[\]|]+)(?:\|([^\[\]]*))?\]\]`)
)

// UserRef is one user reference found in text.
type UserRef struct {
	Name string
	// Start and End are byte offsets of the whole reference.
	Start int
	End   int
}

// UserRefs returns every user-page or user-talk link in s, in order.
func UserRefs(s string) []UserRef {
	matches := userLinkPattern.FindAllStringSubmatchIndex(s, -1)
	refs := make([]UserRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, UserRef{
			Name:  strings.TrimSpace(s[m[2]:m[3]]),
			Start: m[0],
			End:   m[1],
		})
	}
	return refs
}

// UserTemplate returns the name from the first {{user|Name}} template in s.
func UserTemplate(s string) (string, bool) {
	m := userTemplatePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", false
	}
	return name, true
}

// Wikilink is an internal link. Text is empty when the link has no pipe.
type Wikilink struct {
	Target string
	Text   string
	Piped  bool
}

// Wikilinks returns the internal links of s in document order.
func Wikilinks(s string) []Wikilink {
	matches := wikilinkPattern.FindAllStringSubmatchIndex(s, -1)
	links := make([]Wikilink, 0, len(matches))
	for _, m := range matches {
		l := Wikilink{Target: s[m[2]:m[3]]}
		if m[4] >= 0 {
			l.Text = s[m[4]:m[5]]
			l.Piped = true
		}
		links = append(links, l)
	}
	return links
}

// SplitFragment splits a link target into page and fragment. ok is false
// when the target carries no "#".
func (l Wikilink) SplitFragment() (page, fragment string, ok bool) {
	page, fragment, ok = strings.Cut(l.Target, "#")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(page), fragment, true
}
