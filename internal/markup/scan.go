package markup

import "regexp"

// match is one non-overlapping regexp hit with the byte offsets of the whole
// match and of each capture group (-1 for groups that did not participate).
type match struct {
	start, end int
	groups     []span
}

type span struct {
	start, end int
}

func (m match) group(text string, i int) string {
	if i < 0 || i >= len(m.groups) {
		return ""
	}
	g := m.groups[i]
	if g.start < 0 || g.end < g.start {
		return ""
	}
	return text[g.start:g.end]
}

// findAll runs a fresh scan of re over text.
func findAll(re *regexp.Regexp, text string) []match {
	raw := re.FindAllStringSubmatchIndex(text, -1)
	out := make([]match, 0, len(raw))
	for _, loc := range raw {
		m := match{start: loc[0], end: loc[1]}
		for i := 2; i+1 < len(loc); i += 2 {
			m.groups = append(m.groups, span{start: loc[i], end: loc[i+1]})
		}
		out = append(out, m)
	}
	return out
}

// findFirst returns the first hit of re in text.
func findFirst(re *regexp.Regexp, text string) (match, bool) {
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return match{}, false
	}
	m := match{start: loc[0], end: loc[1]}
	for i := 2; i+1 < len(loc); i += 2 {
		m.groups = append(m.groups, span{start: loc[i], end: loc[i+1]})
	}
	return m, true
}

// asciiLower lowercases ASCII letters only, so byte offsets in the result
// address the same characters as in the input.
func asciiLower(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// blankComments replaces every HTML comment with spaces, keeping newlines,
// so tag offsets found in the result still point into the original text.
func blankComments(text string) string {
	locs := commentPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	b := []byte(text)
	for _, loc := range locs {
		for i := loc[0]; i < loc[1]; i++ {
			if b[i] != '\n' {
				b[i] = ' '
			}
		}
	}
	return string(b)
}

var commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
