package markup

// Severity is the actionability category of an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
)

// Rank orders severities by how much attention they need. It is used for
// exit-code thresholds and summaries, never for ordering issues.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Issue is one diagnostic finding. Line and Column are either both set or
// both nil; when set they are 1-based. Rule names the check that produced it.
type Issue struct {
	Rule          string   `json:"rule,omitempty"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
	SourceExcerpt string   `json:"sourceExcerpt,omitempty"`
	Line          *int     `json:"line,omitempty"`
	Column        *int     `json:"column,omitempty"`
	Suggestion    string   `json:"suggestion,omitempty"`
}

// HasPosition reports whether the issue is anchored to a source position.
func (i Issue) HasPosition() bool {
	return i.Line != nil && i.Column != nil
}

// Result is the output of the structural analyzer.
type Result struct {
	Issues    []Issue `json:"issues"`
	FixedCode *string `json:"fixedCode,omitempty"`
}

// Summary counts issues per severity.
type Summary struct {
	Errors    int `json:"errors"`
	Warnings  int `json:"warnings"`
	Infos     int `json:"infos"`
	Successes int `json:"successes"`
}

// Report is the merged output of every detector for one document.
type Report struct {
	Issues    []Issue `json:"issues"`
	FixedCode *string `json:"fixedCode,omitempty"`
	Framework string  `json:"framework,omitempty"`
	Summary   Summary `json:"summary"`
}

// Summarize counts issues per severity.
func Summarize(issues []Issue) Summary {
	var s Summary
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		case SeverityInfo:
			s.Infos++
		case SeveritySuccess:
			s.Successes++
		}
	}
	return s
}

// HasActionable reports whether any issue is an error or a warning.
func HasActionable(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError || issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// MaxSeverity returns the most actionable severity present, or "" for none.
func MaxSeverity(issues []Issue) Severity {
	var max Severity
	for _, issue := range issues {
		if max == "" || issue.Severity.Rank() > max.Rank() {
			max = issue.Severity
		}
	}
	return max
}

// issueAt builds an issue anchored at offset in text. When the offset does not
// resolve to a position the issue is left unanchored.
func issueAt(text string, offset int, sev Severity, message, suggestion string) Issue {
	issue := Issue{
		Severity:   sev,
		Message:    message,
		Suggestion: suggestion,
	}
	line, column := Locate(text, offset)
	if line < 1 || column < 1 {
		return issue
	}
	issue.Line = &line
	issue.Column = &column
	issue.SourceExcerpt = RenderContext(text, offset, DefaultContextRadius)
	return issue
}
