package markup

import (
	"regexp"
	"strings"
)

var (
	scriptPattern = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)
	letPattern    = regexp.MustCompile(`\blet\s+\w+\s*=\s*[^;{}\n]+`)
)

// checkScripts looks for line-level JavaScript smells inside inline script
// blocks. This is pattern matching, not a grammar check.
func checkScripts(d document) []Issue {
	var issues []Issue
	for _, m := range findAll(scriptPattern, d.text) {
		body := m.groups[0]
		if body.start < 0 {
			continue
		}
		content := d.text[body.start:body.end]

		if idx := strings.Index(content, "for ("); idx >= 0 && !strings.Contains(content[idx:], ") {") {
			issues = append(issues, issueAt(d.text, body.start+idx, SeverityError,
				"JavaScript syntax error: Missing closing parenthesis in for loop",
				"Add the missing closing parenthesis to the for loop"))
		}

		if idx, ok := unterminatedLet(content); ok {
			issues = append(issues, issueAt(d.text, body.start+idx, SeverityWarning,
				"JavaScript style issue: Missing semicolon",
				"Add semicolons to the end of statements for better code clarity"))
		}
	}
	return issues
}

// unterminatedLet finds the first `let name = expr` whose expression is not
// followed by ';', '{', '}' or a newline.
func unterminatedLet(content string) (int, bool) {
	for _, m := range findAll(letPattern, content) {
		if m.end >= len(content) {
			return m.start, true
		}
	}
	return 0, false
}
