// Package report renders analysis reports as Markdown and HTML documents.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"markupcheck-backend/internal/markup"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithXHTML()),
)

var severityLabels = map[markup.Severity]string{
	markup.SeverityError:   "Error",
	markup.SeverityWarning: "Warning",
	markup.SeverityInfo:    "Info",
	markup.SeveritySuccess: "Success",
}

// Markdown renders r as a Markdown document headed by title.
func Markdown(r markup.Report, title string) string {
	if strings.TrimSpace(title) == "" {
		title = "Markup report"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeInline(title))
	fmt.Fprintf(&b, "%d errors, %d warnings, %d info, %d passed\n\n",
		r.Summary.Errors, r.Summary.Warnings, r.Summary.Infos, r.Summary.Successes)
	if r.Framework != "" {
		fmt.Fprintf(&b, "Framework: **%s**\n\n", r.Framework)
	}

	if len(r.Issues) == 0 {
		b.WriteString("No issues reported.\n")
	}
	for i, issue := range r.Issues {
		label := severityLabels[issue.Severity]
		if label == "" {
			label = string(issue.Severity)
		}
		fmt.Fprintf(&b, "## %d. %s: %s\n\n", i+1, label, escapeInline(issue.Message))
		if issue.HasPosition() {
			fmt.Fprintf(&b, "Line %d, column %d\n\n", *issue.Line, *issue.Column)
		}
		if issue.SourceExcerpt != "" {
			writeFence(&b, "text", issue.SourceExcerpt)
		}
		if issue.Suggestion != "" {
			fmt.Fprintf(&b, "> %s\n\n", escapeInline(issue.Suggestion))
		}
	}

	if r.FixedCode != nil {
		b.WriteString("## Fixed code\n\n")
		writeFence(&b, "html", *r.FixedCode)
	}
	return b.String()
}

// HTML renders r as a standalone HTML page.
func HTML(r markup.Report, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		title = "Markup report"
	}
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(r, title)), &body); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}

// writeFence writes content in a fenced block long enough that backticks in
// content cannot close it.
func writeFence(b *strings.Builder, lang, content string) {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	fmt.Fprintf(b, "%s%s\n%s", fence, lang, content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "%s\n\n", fence)
}

var inlineEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
)

func escapeInline(s string) string {
	return inlineEscaper.Replace(s)
}
