package markup

import (
	"fmt"
	"regexp"
	"strings"
)

const doctypePrefix = "<!DOCTYPE html>\n"

// document is the read-only view every structural rule scans.
type document struct {
	text  string
	lower string
}

// rule is one structural check. Rules run in table order and each returns its
// own ordered findings.
type rule struct {
	id    string
	check func(d document) []Issue
}

// Rule IDs, in evaluation order. Each issue carries the id of its rule.
const (
	RuleDoctype         = "doctype"
	RuleTagBalance      = "tag-balance"
	RuleInlineStyle     = "inline-style"
	RuleAnalyticsScript = "analytics-script"
	RuleDeprecatedTag   = "deprecated-tag"
	RuleImageAlt        = "image-alt"
	RuleViewport        = "viewport"
	RuleScriptSmell     = "script-smell"
	RuleMalformedAttr   = "malformed-attribute"
	RuleAnalytics       = "analytics"
	RuleFramework       = "framework"
)

var structuralRules = []rule{
	{id: RuleDoctype, check: checkDoctype},
	{id: RuleTagBalance, check: checkTagBalance},
	{id: RuleInlineStyle, check: patternCheck(patternRule{
		pattern:    inlineStylePattern,
		severity:   SeverityWarning,
		message:    func(document, match) string { return "Inline styles detected" },
		suggestion: func(document, match) string { return "Consider using external CSS for better maintainability" },
	})},
	{id: RuleAnalyticsScript, check: checkAnalyticsScript},
	{id: RuleDeprecatedTag, check: checkDeprecatedTags},
	{id: RuleImageAlt, check: patternCheck(patternRule{
		pattern:  imgPattern,
		severity: SeverityWarning,
		accept: func(d document, m match) bool {
			return !strings.Contains(d.lower[m.start:m.end], "alt=")
		},
		message:    func(document, match) string { return "Image missing alt attribute" },
		suggestion: func(document, match) string { return "Add descriptive alt text to images for accessibility" },
	})},
	{id: RuleViewport, check: checkViewport},
	{id: RuleScriptSmell, check: checkScripts},
	{id: RuleMalformedAttr, check: patternCheck(patternRule{
		pattern:  malformedAttrPattern,
		severity: SeverityError,
		message: func(d document, m match) string {
			return "Malformed HTML attribute: " + m.group(d.text, 0)
		},
		suggestion: func(d document, m match) string {
			return fmt.Sprintf("Wrap the attribute value in quotes: %s=\"value\"", m.group(d.text, 0))
		},
	})},
}

var (
	inlineStylePattern   = regexp.MustCompile(`(?i)<[^>]* style=["']([^"']*)["'][^>]*>`)
	imgPattern           = regexp.MustCompile(`(?i)<img[^>]*>`)
	malformedAttrPattern = regexp.MustCompile(`<[^>]+\s(\w+)=[^'"\n]`)
	deprecatedTags       = []string{"center", "font", "marquee", "blink", "strike"}
	deprecatedPatterns   = compileDeprecated(deprecatedTags)
)

func compileDeprecated(tags []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(tags))
	for _, tag := range tags {
		out = append(out, regexp.MustCompile(`(?i)<`+regexp.QuoteMeta(tag)+`[^>]*>`))
	}
	return out
}

// patternRule turns every accepted hit of a pattern into one issue anchored
// at the start of the hit.
type patternRule struct {
	pattern    *regexp.Regexp
	severity   Severity
	accept     func(d document, m match) bool
	message    func(d document, m match) string
	suggestion func(d document, m match) string
}

func patternCheck(pr patternRule) func(d document) []Issue {
	return func(d document) []Issue {
		var issues []Issue
		for _, m := range findAll(pr.pattern, d.text) {
			if pr.accept != nil && !pr.accept(d, m) {
				continue
			}
			issues = append(issues, issueAt(d.text, m.start, pr.severity, pr.message(d, m), pr.suggestion(d, m)))
		}
		return issues
	}
}

// AnalyzeHTML runs the structural checks over html. Blank input yields an
// empty result; otherwise the result always has at least one issue.
func AnalyzeHTML(html string) Result {
	issues, fix := analyzeStructure(html)
	if issues == nil {
		return Result{Issues: []Issue{}}
	}
	return Result{Issues: issues, FixedCode: keepFix(fix, issues)}
}

// analyzeStructure returns the structural issues and the candidate doctype
// fix, before the fix is filtered against the final issue set.
func analyzeStructure(html string) ([]Issue, *string) {
	if strings.TrimSpace(html) == "" {
		return nil, nil
	}
	d := document{text: html, lower: asciiLower(html)}

	issues := make([]Issue, 0, 8)
	for _, r := range structuralRules {
		issues = append(issues, runRule(r, d)...)
	}

	var fix *string
	if needsDoctype(d) {
		fixed := doctypePrefix + html
		fix = &fixed
	}

	if len(issues) == 0 {
		issues = append(issues, Issue{
			Severity: SeveritySuccess,
			Message:  "No significant issues found in the HTML code",
		})
	}
	return issues, fix
}

// runRule isolates a rule so that a failure inside it counts as "no match".
func runRule(r rule, d document) (issues []Issue) {
	defer func() {
		if rec := recover(); rec != nil {
			issues = nil
		}
	}()
	return withRule(r.check(d), r.id)
}

func withRule(issues []Issue, id string) []Issue {
	for i := range issues {
		issues[i].Rule = id
	}
	return issues
}

func keepFix(fix *string, issues []Issue) *string {
	if fix == nil || !HasActionable(issues) {
		return nil
	}
	return fix
}

func needsDoctype(d document) bool {
	return !strings.Contains(d.lower, "<!doctype")
}

func checkDoctype(d document) []Issue {
	if !needsDoctype(d) {
		return nil
	}
	return []Issue{issueAt(d.text, 0, SeverityWarning,
		"Missing DOCTYPE declaration",
		"Add <!DOCTYPE html> at the beginning of your HTML document")}
}

const (
	legacyAnalyticsMarker = "google-analytics.com/analytics.js"
	modernAnalyticsMarker = "googletagmanager.com/gtag"
)

func checkAnalyticsScript(d document) []Issue {
	if idx := strings.Index(d.lower, legacyAnalyticsMarker); idx >= 0 {
		return []Issue{issueAt(d.text, idx, SeverityWarning,
			"Using legacy Google Analytics (analytics.js)",
			"Consider upgrading to GA4 using gtag.js for better features and future support")}
	}
	if idx := strings.Index(d.lower, modernAnalyticsMarker); idx >= 0 {
		return []Issue{issueAt(d.text, idx, SeveritySuccess,
			"Using modern Google Analytics (gtag.js)", "")}
	}
	return nil
}

func checkDeprecatedTags(d document) []Issue {
	var issues []Issue
	for i, re := range deprecatedPatterns {
		m, ok := findFirst(re, d.text)
		if !ok {
			continue
		}
		tag := deprecatedTags[i]
		issues = append(issues, issueAt(d.text, m.start, SeverityError,
			fmt.Sprintf("Deprecated <%s> tag detected", tag),
			fmt.Sprintf("Replace <%s> with CSS equivalent styling", tag)))
	}
	return issues
}

func checkViewport(d document) []Issue {
	idx := strings.Index(d.lower, "<meta")
	if idx < 0 || strings.Contains(d.lower, "viewport") {
		return nil
	}
	return []Issue{issueAt(d.text, idx, SeverityInfo,
		"No viewport meta tag found",
		`Add <meta name="viewport" content="width=device-width, initial-scale=1"> for responsive design`)}
}
