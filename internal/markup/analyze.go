package markup

import "strings"

// Analyze runs every detector over text and merges their findings in a fixed
// order: structural checks, analytics checks when analytics markers are
// present, then the detected framework as an advisory note.
func Analyze(text string) Report {
	if strings.TrimSpace(text) == "" {
		return Report{Issues: []Issue{}}
	}

	issues, fix := analyzeStructure(text)
	if HasAnalyticsMarkers(text) {
		issues = append(issues, safeAnalytics(text)...)
	}

	report := Report{}
	if name, ok := DetectFramework(text); ok {
		report.Framework = name
		issues = append(issues, Issue{
			Rule:     RuleFramework,
			Severity: SeverityInfo,
			Message:  name + " framework detected",
		})
	}

	report.Issues = issues
	report.FixedCode = keepFix(fix, issues)
	report.Summary = Summarize(issues)
	return report
}

// Analyzer runs Analyze with a custom excerpt radius. Radii below 1 use
// DefaultContextRadius.
type Analyzer struct {
	ContextRadius int
}

// Analyze is Analyze with excerpts rendered at a.ContextRadius.
func (a Analyzer) Analyze(text string) Report {
	report := Analyze(text)
	if a.ContextRadius < 1 || a.ContextRadius == DefaultContextRadius {
		return report
	}
	for i := range report.Issues {
		issue := &report.Issues[i]
		if !issue.HasPosition() {
			continue
		}
		if off := Offset(text, *issue.Line, *issue.Column); off >= 0 {
			issue.SourceExcerpt = RenderContext(text, off, a.ContextRadius)
		}
	}
	return report
}

func safeAnalytics(text string) (issues []Issue) {
	defer func() {
		if rec := recover(); rec != nil {
			issues = nil
		}
	}()
	return withRule(AnalyzeAnalytics(text), RuleAnalytics)
}
