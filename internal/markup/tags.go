package markup

import (
	"regexp"
	"strings"
)

// TagOccurrence is a tag found by the balance scan. Name is lowercase and
// Offset is the byte position of the '<'.
type TagOccurrence struct {
	Name   string
	Offset int
}

var (
	openTagPattern  = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)[^>]*>`)
	closeTagPattern = regexp.MustCompile(`</([a-zA-Z][a-zA-Z0-9]*)\s*>`)
)

var voidElements = map[string]bool{
	"img": true, "br": true, "hr": true, "meta": true, "link": true,
	"input": true, "area": true, "base": true, "col": true, "embed": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// isVoidElement reports whether name can never have a closing tag.
func isVoidElement(name string) bool {
	return voidElements[strings.ToLower(name)]
}

// tagStreams holds the three tag streams of one document, in document order.
type tagStreams struct {
	opening     []TagOccurrence
	closing     []TagOccurrence
	selfClosing []TagOccurrence
}

func scanTags(text string) tagStreams {
	var s tagStreams
	for _, m := range findAll(openTagPattern, text) {
		occ := TagOccurrence{Name: strings.ToLower(m.group(text, 0)), Offset: m.start}
		if strings.HasSuffix(text[m.start:m.end], "/>") {
			s.selfClosing = append(s.selfClosing, occ)
			continue
		}
		s.opening = append(s.opening, occ)
	}
	for _, m := range findAll(closeTagPattern, text) {
		s.closing = append(s.closing, TagOccurrence{Name: strings.ToLower(m.group(text, 0)), Offset: m.start})
	}
	return s
}

// mustClose filters the opening stream down to tags that need a closing tag.
func mustClose(opening []TagOccurrence) []TagOccurrence {
	out := make([]TagOccurrence, 0, len(opening))
	for _, occ := range opening {
		if isVoidElement(occ.Name) {
			continue
		}
		out = append(out, occ)
	}
	return out
}

// checkTagBalance matches closing tags against open ones. Each closing tag
// removes the most recent open tag with the same name, wherever it sits in
// the stack, so overlapping markup like <b><i></b></i> is tolerated.
func checkTagBalance(d document) []Issue {
	streams := scanTags(blankComments(d.text))
	stack := mustClose(streams.opening)
	if len(stack) == len(streams.closing) {
		return nil
	}

	var issues []Issue
	for _, closing := range streams.closing {
		matched := false
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].Name == closing.Name {
				stack = append(stack[:i], stack[i+1:]...)
				matched = true
				break
			}
		}
		if !matched {
			issues = append(issues, issueAt(d.text, closing.Offset, SeverityError,
				"Extra closing tag: </"+closing.Name+">",
				"Remove the extra </"+closing.Name+"> tag"))
		}
	}
	for _, open := range stack {
		issues = append(issues, issueAt(d.text, open.Offset, SeverityError,
			"Unclosed tag: <"+open.Name+">",
			"Add a closing </"+open.Name+"> tag"))
	}
	return issues
}
