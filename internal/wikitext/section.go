package wikitext

import "strings"

// Heading is one heading line found in a document.
type Heading struct {
	Level int
	Text  string
	// Start is the byte offset of the heading line. End is the offset just
	// past its line terminator, i.e. where the heading's body begins.
	Start int
	End   int
}

// ParseHeading reports whether line is a heading line: a run of 2-6 "="
// characters, the heading text, the same run again, then optional
// whitespace. The longest run that closes the line wins, so "===A==" is a
// level 2 heading with text "=A".
func ParseHeading(line string) (level int, text string, ok bool) {
	line = strings.TrimRight(line, " \t\r\v\f")

	run := 0
	for run < len(line) && line[run] == '=' {
		run++
	}
	if run > 6 {
		run = 6
	}

	for n := run; n >= 2; n-- {
		if len(line) < 2*n {
			continue
		}
		if strings.HasSuffix(line, strings.Repeat("=", n)) {
			return n, strings.TrimSpace(line[n : len(line)-n]), true
		}
	}
	return 0, "", false
}

// Headings returns every heading line of doc in document order.
func Headings(doc string) []Heading {
	var headings []Heading
	offset := 0
	for offset <= len(doc) {
		end := strings.IndexByte(doc[offset:], '\n')
		lineEnd, next := len(doc), len(doc)
		if end >= 0 {
			lineEnd = offset + end
			next = lineEnd + 1
		}

		if level, text, ok := ParseHeading(doc[offset:lineEnd]); ok {
			headings = append(headings, Heading{
				Level: level,
				Text:  text,
				Start: offset,
				End:   next,
			})
		}

		if end < 0 {
			break
		}
		offset = next
	}
	return headings
}

// Section returns the body of the first heading whose slug equals anchor:
// the text after the heading line up to the start of the next heading line
// of any level, or the end of doc. It returns "" when no heading matches;
// callers treat that as "no evidence", not as an error.
func Section(doc, anchor string) string {
	target := Slug(anchor)
	headings := Headings(doc)
	for i, h := range headings {
		if Slug(h.Text) != target {
			continue
		}
		end := len(doc)
		if i+1 < len(headings) {
			end = headings[i+1].Start
		}
		return doc[h.End:end]
	}
	return ""
}
