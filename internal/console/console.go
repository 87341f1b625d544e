// Package console renders analysis reports for terminals.
package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"markupcheck-backend/internal/markup"
)

var (
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5555"))

	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	infoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#50FA7B"))

	filePathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#BD93F9"))

	excerptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	hintStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#50FA7B"))
)

// Printer formats issues, optionally with ANSI styling.
type Printer struct {
	Color bool
}

// NewPrinter resolves mode (auto, always, never) against f.
func NewPrinter(f *os.File, mode string) Printer {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always", "on", "true":
		return Printer{Color: true}
	case "never", "off", "false":
		return Printer{Color: false}
	default:
		return Printer{Color: IsTTY(f)}
	}
}

// IsTTY reports whether f is a terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p Printer) apply(style lipgloss.Style, text string) string {
	if p.Color {
		return style.Render(text)
	}
	return text
}

func severityStyle(sev markup.Severity) lipgloss.Style {
	switch sev {
	case markup.SeverityError:
		return errorStyle
	case markup.SeverityWarning:
		return warningStyle
	case markup.SeveritySuccess:
		return successStyle
	default:
		return infoStyle
	}
}

// FormatIssue renders one issue in the file:line:column: severity: message
// form, followed by its excerpt and suggestion.
func (p Printer) FormatIssue(name string, issue markup.Issue) string {
	var out strings.Builder

	location := ToRelativePath(name)
	if issue.HasPosition() {
		location = fmt.Sprintf("%s:%d:%d", location, *issue.Line, *issue.Column)
	}
	if location != "" {
		out.WriteString(p.apply(filePathStyle, location+":"))
		out.WriteString(" ")
	}
	out.WriteString(p.apply(severityStyle(issue.Severity), string(issue.Severity)+":"))
	out.WriteString(" ")
	out.WriteString(issue.Message)
	out.WriteString("\n")

	if issue.SourceExcerpt != "" {
		for _, line := range strings.Split(strings.TrimRight(issue.SourceExcerpt, "\n"), "\n") {
			out.WriteString(p.apply(excerptStyle, line))
			out.WriteString("\n")
		}
	}
	if issue.Suggestion != "" {
		out.WriteString(p.apply(hintStyle, "hint: "))
		out.WriteString(issue.Suggestion)
		out.WriteString("\n")
	}
	return out.String()
}

// FormatReport renders every issue of r followed by a one-line summary.
func (p Printer) FormatReport(name string, r markup.Report) string {
	var out strings.Builder
	for i, issue := range r.Issues {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(p.FormatIssue(name, issue))
	}
	if len(r.Issues) > 0 {
		out.WriteString("\n")
	}
	out.WriteString(p.FormatSummary(name, r.Summary))
	return out.String()
}

// FormatSummary renders the per-severity counts for one document.
func (p Printer) FormatSummary(name string, s markup.Summary) string {
	counts := fmt.Sprintf("%s, %s, %s",
		p.apply(errorStyle, plural(s.Errors, "error")),
		p.apply(warningStyle, plural(s.Warnings, "warning")),
		p.apply(infoStyle, fmt.Sprintf("%d info", s.Infos)))
	if name == "" {
		return counts + "\n"
	}
	return fmt.Sprintf("%s %s\n", p.apply(filePathStyle, ToRelativePath(name)+":"), counts)
}

// FormatError renders a failure to read or fetch a document.
func (p Printer) FormatError(name string, err error) string {
	prefix := p.apply(errorStyle, "error:")
	if name == "" {
		return fmt.Sprintf("%s %v\n", prefix, err)
	}
	return fmt.Sprintf("%s %s %v\n", p.apply(filePathStyle, ToRelativePath(name)+":"), prefix, err)
}

// ToRelativePath converts an absolute path to one relative to the working
// directory. Other names are returned unchanged.
func ToRelativePath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
