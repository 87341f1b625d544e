package markup

import (
	"strings"
	"testing"
)

func TestAnalyzeAnalyticsDuplicateIDs(t *testing.T) {
	text := "<script>gtag('config','G-123');gtag('config','G-123');</script>"
	issues := AnalyzeAnalytics(text)

	var dups []Issue
	for _, issue := range issues {
		if strings.HasPrefix(issue.Message, "Multiple Google Analytics tags") {
			dups = append(dups, issue)
		}
	}
	if len(dups) != 1 {
		t.Fatalf("expected 1 duplicate issue, got %+v", dups)
	}
	if dups[0].Severity != SeverityError {
		t.Fatalf("expected error, got %s", dups[0].Severity)
	}
	if !strings.Contains(dups[0].Message, "G-123") {
		t.Fatalf("expected message to name G-123, got %q", dups[0].Message)
	}
	assertPosition(t, dups[0], 1, 24)
}

func TestAnalyzeAnalyticsDuplicateAnchoredAtLoader(t *testing.T) {
	text := strings.Join([]string{
		`<script async src="https://www.googletagmanager.com/gtag/js?id=G-ABC"></script>`,
		`<script>`,
		`gtag('config', 'G-ABC');`,
		`gtag('config', 'G-ABC');`,
		`</script>`,
	}, "\n")
	issues := AnalyzeAnalytics(text)
	if len(issues) == 0 || !strings.HasPrefix(issues[0].Message, "Multiple Google Analytics tags") {
		t.Fatalf("expected duplicate issue first, got %+v", issues)
	}
	assertPosition(t, issues[0], 1, 64)
}

func TestAnalyzeAnalyticsListsEveryDuplicatedID(t *testing.T) {
	text := `gtag("config", "G-1"); gtag("config", "G-2"); gtag("config", "G-1"); gtag("config", "G-2"); gtag("config", "G-1");`
	issues := AnalyzeAnalytics(text)
	if len(issues) == 0 {
		t.Fatalf("expected issues")
	}
	if issues[0].Message != "Multiple Google Analytics tags with same ID: G-1, G-2" {
		t.Fatalf("unexpected message %q", issues[0].Message)
	}
}

func TestAnalyzeAnalyticsDistinctIDs(t *testing.T) {
	issues := AnalyzeAnalytics("gtag('config','G-1'); gtag('config','G-2'); gtag('consent','default'); gtag('event','x');")
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestAnalyzeAnalyticsHints(t *testing.T) {
	text := "<script>\ngtag('config', 'UA-42');\n</script>"
	issues := AnalyzeAnalytics(text)
	want := []struct {
		severity Severity
		message  string
	}{
		{SeverityWarning, "Using gtag.js without a GA4 measurement ID"},
		{SeverityInfo, "Google consent mode not detected"},
		{SeverityInfo, "No custom event tracking detected"},
	}
	if len(issues) != len(want) {
		t.Fatalf("expected %d issues, got %+v", len(want), issues)
	}
	for i, w := range want {
		if issues[i].Severity != w.severity || issues[i].Message != w.message {
			t.Fatalf("issue %d = %s %q, want %s %q", i, issues[i].Severity, issues[i].Message, w.severity, w.message)
		}
		assertPosition(t, issues[i], 2, 1)
	}
}

func TestAnalyzeAnalyticsWithoutGtag(t *testing.T) {
	issues := AnalyzeAnalytics("<script src='https://www.google-analytics.com/analytics.js'></script>")
	if len(issues) != 0 {
		t.Fatalf("expected no issues without gtag calls, got %+v", issues)
	}
}

func TestExtractTrackingIDs(t *testing.T) {
	text := "gtag('config', 'G-A');\ngtag( \"config\" , \"UA-B\" );"
	ids := ExtractTrackingIDs(text)
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %+v", ids)
	}
	if ids[0].ID != "G-A" || ids[1].ID != "UA-B" {
		t.Fatalf("unexpected ids %+v", ids)
	}
	if text[ids[1].Offset:ids[1].Offset+4] != "UA-B" {
		t.Fatalf("offset %d does not point at the id", ids[1].Offset)
	}
}

func TestHasAnalyticsMarkers(t *testing.T) {
	if !HasAnalyticsMarkers("<script>gtag('js', new Date());</script>") {
		t.Fatalf("expected gtag to count as a marker")
	}
	if !HasAnalyticsMarkers("www.google-analytics.com") {
		t.Fatalf("expected google-analytics to count as a marker")
	}
	if HasAnalyticsMarkers("<p>plain</p>") {
		t.Fatalf("unexpected marker in plain text")
	}
}
