package markup

import (
	"regexp"
	"strings"
)

var gtagConfigPattern = regexp.MustCompile(`gtag\(\s*['"]config['"]\s*,\s*['"]([^'"]+)['"]`)

// HasAnalyticsMarkers reports whether text carries Google Analytics tagging
// worth a dedicated analytics pass.
func HasAnalyticsMarkers(text string) bool {
	return strings.Contains(text, "google-analytics") || strings.Contains(text, "gtag")
}

// TrackingID is an id passed to a gtag('config', id) call.
type TrackingID struct {
	ID     string
	Offset int
}

// ExtractTrackingIDs returns every gtag config id in document order.
func ExtractTrackingIDs(text string) []TrackingID {
	var ids []TrackingID
	for _, m := range findAll(gtagConfigPattern, text) {
		g := m.groups[0]
		ids = append(ids, TrackingID{ID: text[g.start:g.end], Offset: g.start})
	}
	return ids
}

// AnalyzeAnalytics reports analytics tagging problems: duplicated tracking
// ids, a missing GA4 measurement id, and missing consent or event hints.
func AnalyzeAnalytics(text string) []Issue {
	issues := make([]Issue, 0, 4)

	if dup, ok := duplicateTrackingIDs(text); ok {
		issues = append(issues, dup)
	}

	gtagIdx := strings.Index(text, "gtag")
	if gtagIdx < 0 {
		return issues
	}
	if !strings.Contains(text, "G-") {
		issues = append(issues, issueAt(text, gtagIdx, SeverityWarning,
			"Using gtag.js without a GA4 measurement ID",
			"Add a GA4 measurement ID (format: G-XXXXXXXX) to fully leverage GA4 capabilities"))
	}
	if !strings.Contains(text, "consent") {
		issues = append(issues, issueAt(text, gtagIdx, SeverityInfo,
			"Google consent mode not detected",
			"Consider implementing consent mode for better privacy compliance in regions with strict privacy laws"))
	}
	if !strings.Contains(text, "event") {
		issues = append(issues, issueAt(text, gtagIdx, SeverityInfo,
			"No custom event tracking detected",
			"Consider adding custom event tracking for better user behavior analysis"))
	}
	return issues
}

// duplicateTrackingIDs builds a single issue naming every id configured more
// than once, anchored at the first appearance of the first duplicated id
// anywhere in the text, which is usually the gtag.js loader URL.
func duplicateTrackingIDs(text string) (Issue, bool) {
	seen := make(map[string]bool)
	reported := make(map[string]bool)
	var duplicates []string
	for _, tid := range ExtractTrackingIDs(text) {
		if !seen[tid.ID] {
			seen[tid.ID] = true
			continue
		}
		if !reported[tid.ID] {
			reported[tid.ID] = true
			duplicates = append(duplicates, tid.ID)
		}
	}
	if len(duplicates) == 0 {
		return Issue{}, false
	}
	return issueAt(text, strings.Index(text, duplicates[0]), SeverityError,
		"Multiple Google Analytics tags with same ID: "+strings.Join(duplicates, ", "),
		"Remove duplicate GA implementations to prevent data duplication"), true
}
