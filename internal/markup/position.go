package markup

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultContextRadius is the number of lines shown above and below the
// target line in a source excerpt.
const DefaultContextRadius = 3

// Locate converts a byte offset into a 1-based line and column. Offsets
// outside the text resolve to (-1, -1).
func Locate(text string, offset int) (line, column int) {
	if offset < 0 || offset >= len(text) {
		return -1, -1
	}
	before := text[:offset]
	line = strings.Count(before, "\n") + 1
	lastSegment := before[strings.LastIndexByte(before, '\n')+1:]
	column = utf8.RuneCountInString(lastSegment) + 1
	return line, column
}

// RenderContext renders the lines around offset, marking the target line
// with "> " and placing a caret under the offending column:
//
//	   1   <html>
//	   2 > <body style="x">
//	      ^
//	   3   </html>
func RenderContext(text string, offset, radius int) string {
	if offset < 0 || offset >= len(text) {
		return ""
	}
	line, column := Locate(text, offset)
	if line <= 0 {
		return ""
	}
	if radius < 0 {
		radius = 0
	}

	lines := strings.Split(text, "\n")
	start := max(1, line-radius)
	end := min(len(lines), line+radius)

	var b strings.Builder
	for i := start; i <= end; i++ {
		marker := "  "
		if i == line {
			marker = "> "
		}
		fmt.Fprintf(&b, "%4d %s%s\n", i, marker, lines[i-1])
		if i == line {
			b.WriteString("      ")
			b.WriteString(strings.Repeat(" ", column-1))
			b.WriteString("^\n")
		}
	}
	return b.String()
}

// Offset is the inverse of Locate. It returns the byte offset addressed by a
// 1-based line and column, or -1 when they fall outside text.
func Offset(text string, line, column int) int {
	if line < 1 || column < 1 {
		return -1
	}
	start := 0
	for l := 1; l < line; l++ {
		idx := strings.IndexByte(text[start:], '\n')
		if idx < 0 {
			return -1
		}
		start += idx + 1
	}
	off := start
	for c := 1; c < column; c++ {
		if off >= len(text) || text[off] == '\n' {
			return -1
		}
		_, size := utf8.DecodeRuneInString(text[off:])
		off += size
	}
	if off >= len(text) {
		return -1
	}
	return off
}
