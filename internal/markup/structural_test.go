package markup

import (
	"reflect"
	"strings"
	"testing"
)

func issuesWithPrefix(issues []Issue, prefix string) []Issue {
	var out []Issue
	for _, issue := range issues {
		if strings.HasPrefix(issue.Message, prefix) {
			out = append(out, issue)
		}
	}
	return out
}

func assertPosition(t *testing.T, issue Issue, line, column int) {
	t.Helper()
	if !issue.HasPosition() {
		t.Fatalf("expected position on %q", issue.Message)
	}
	if *issue.Line != line || *issue.Column != column {
		t.Fatalf("%q at (%d, %d), want (%d, %d)", issue.Message, *issue.Line, *issue.Column, line, column)
	}
}

func TestAnalyzeHTMLBlankInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t \n"} {
		res := AnalyzeHTML(input)
		if len(res.Issues) != 0 {
			t.Fatalf("AnalyzeHTML(%q) returned %d issues, want 0", input, len(res.Issues))
		}
		if res.FixedCode != nil {
			t.Fatalf("AnalyzeHTML(%q) returned fixed code", input)
		}
	}
}

func TestAnalyzeHTMLBalancedTags(t *testing.T) {
	res := AnalyzeHTML("<div><p>text</p></div>")
	if got := issuesWithPrefix(res.Issues, "Unclosed tag"); len(got) != 0 {
		t.Fatalf("unexpected unclosed tags: %+v", got)
	}
	if got := issuesWithPrefix(res.Issues, "Extra closing tag"); len(got) != 0 {
		t.Fatalf("unexpected extra closing tags: %+v", got)
	}
}

func TestAnalyzeHTMLUnclosedTag(t *testing.T) {
	res := AnalyzeHTML("<div><p>text</div>")
	unclosed := issuesWithPrefix(res.Issues, "Unclosed tag")
	if len(unclosed) != 1 {
		t.Fatalf("expected 1 unclosed tag, got %d: %+v", len(unclosed), unclosed)
	}
	if unclosed[0].Message != "Unclosed tag: <p>" {
		t.Fatalf("unexpected message %q", unclosed[0].Message)
	}
	if unclosed[0].Severity != SeverityError {
		t.Fatalf("expected error severity, got %s", unclosed[0].Severity)
	}
	assertPosition(t, unclosed[0], 1, 6)
}

func TestAnalyzeHTMLExtraClosingTag(t *testing.T) {
	res := AnalyzeHTML("<p>text</p></p>")
	extra := issuesWithPrefix(res.Issues, "Extra closing tag")
	if len(extra) != 1 {
		t.Fatalf("expected 1 extra closing tag, got %d: %+v", len(extra), extra)
	}
	assertPosition(t, extra[0], 1, 12)
	if got := issuesWithPrefix(res.Issues, "Unclosed tag"); len(got) != 0 {
		t.Fatalf("unexpected unclosed tags: %+v", got)
	}
}

func TestAnalyzeHTMLOverlappingTagsTolerated(t *testing.T) {
	res := AnalyzeHTML("<!DOCTYPE html>\n<section><b><i>x</b></i><p>")
	unclosed := issuesWithPrefix(res.Issues, "Unclosed tag")
	if len(unclosed) != 2 {
		t.Fatalf("expected 2 unclosed tags, got %+v", unclosed)
	}
	if unclosed[0].Message != "Unclosed tag: <section>" || unclosed[1].Message != "Unclosed tag: <p>" {
		t.Fatalf("unexpected unclosed order: %q, %q", unclosed[0].Message, unclosed[1].Message)
	}
	if got := issuesWithPrefix(res.Issues, "Extra closing tag"); len(got) != 0 {
		t.Fatalf("unexpected extra closing tags: %+v", got)
	}
}

func TestAnalyzeHTMLVoidAndSelfClosingNeverUnclosed(t *testing.T) {
	inputs := []string{
		"<img src='x.jpg' alt='y'>",
		"<!DOCTYPE html><br><hr><input type='text'><div/>",
	}
	for _, input := range inputs {
		res := AnalyzeHTML(input)
		if got := issuesWithPrefix(res.Issues, "Unclosed tag"); len(got) != 0 {
			t.Fatalf("AnalyzeHTML(%q) flagged %+v", input, got)
		}
	}
}

func TestMustCloseSkipsVoidElements(t *testing.T) {
	opening := []TagOccurrence{{Name: "div"}, {Name: "img"}, {Name: "META"}, {Name: "p"}, {Name: "wbr"}}
	var got []string
	for _, occ := range mustClose(opening) {
		got = append(got, occ.Name)
	}
	if !reflect.DeepEqual(got, []string{"div", "p"}) {
		t.Fatalf("expected div and p, got %q", got)
	}
}

func TestAnalyzeHTMLCommentsIgnoredByTagBalance(t *testing.T) {
	res := AnalyzeHTML("<!-- <div> -->\n<section>")
	unclosed := issuesWithPrefix(res.Issues, "Unclosed tag")
	if len(unclosed) != 1 || unclosed[0].Message != "Unclosed tag: <section>" {
		t.Fatalf("unexpected unclosed tags: %+v", unclosed)
	}
	assertPosition(t, unclosed[0], 2, 1)
}

func TestAnalyzeHTMLImageAlt(t *testing.T) {
	res := AnalyzeHTML("<img src='x.jpg'>")
	missing := issuesWithPrefix(res.Issues, "Image missing alt attribute")
	if len(missing) != 1 {
		t.Fatalf("expected 1 missing alt warning, got %+v", missing)
	}
	if missing[0].Severity != SeverityWarning {
		t.Fatalf("expected warning, got %s", missing[0].Severity)
	}

	res = AnalyzeHTML("<img src='x.jpg' alt='x'>")
	if got := issuesWithPrefix(res.Issues, "Image missing alt attribute"); len(got) != 0 {
		t.Fatalf("unexpected missing alt warnings: %+v", got)
	}

	res = AnalyzeHTML("<!DOCTYPE html>\n<img src='a.png'>\n<IMG SRC='b.png' ALT='b'>\n<img src='c.png'>")
	missing = issuesWithPrefix(res.Issues, "Image missing alt attribute")
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing alt warnings, got %+v", missing)
	}
	assertPosition(t, missing[0], 2, 1)
	assertPosition(t, missing[1], 4, 1)
}

func TestAnalyzeHTMLDoctypeFix(t *testing.T) {
	res := AnalyzeHTML("<html></html>")
	if res.FixedCode == nil {
		t.Fatalf("expected fixed code")
	}
	if *res.FixedCode != "<!DOCTYPE html>\n<html></html>" {
		t.Fatalf("unexpected fixed code %q", *res.FixedCode)
	}
	doctype := issuesWithPrefix(res.Issues, "Missing DOCTYPE")
	if len(doctype) != 1 || doctype[0].Severity != SeverityWarning {
		t.Fatalf("expected doctype warning, got %+v", doctype)
	}
	assertPosition(t, doctype[0], 1, 1)
	if res.Issues[0].Message != "Missing DOCTYPE declaration" {
		t.Fatalf("doctype check should run first, got %q", res.Issues[0].Message)
	}
}

func TestAnalyzeHTMLDoctypeCaseInsensitive(t *testing.T) {
	res := AnalyzeHTML("<!doctype html>\n<p>x</p>")
	if got := issuesWithPrefix(res.Issues, "Missing DOCTYPE"); len(got) != 0 {
		t.Fatalf("unexpected doctype warning: %+v", got)
	}
	if res.FixedCode != nil {
		t.Fatalf("unexpected fixed code %q", *res.FixedCode)
	}
}

func TestAnalyzeHTMLCleanDocumentReportsSuccess(t *testing.T) {
	html := "<!DOCTYPE html>\n<html><head><meta name=\"viewport\" content=\"width=device-width\"></head>" +
		"<body><p>hi</p></body></html>"
	res := AnalyzeHTML(html)
	if len(res.Issues) != 1 {
		t.Fatalf("expected a single issue, got %+v", res.Issues)
	}
	issue := res.Issues[0]
	if issue.Severity != SeveritySuccess || issue.HasPosition() || issue.Line != nil || issue.Column != nil {
		t.Fatalf("expected unanchored success, got %+v", issue)
	}
	if res.FixedCode != nil {
		t.Fatalf("unexpected fixed code")
	}
}

func TestAnalyzeHTMLInlineStyles(t *testing.T) {
	res := AnalyzeHTML("<!DOCTYPE html>\n<div style=\"color:red\">x</div>\n<p STYLE='a'>y</p>")
	styles := issuesWithPrefix(res.Issues, "Inline styles detected")
	if len(styles) != 2 {
		t.Fatalf("expected 2 inline style warnings, got %+v", styles)
	}
	assertPosition(t, styles[0], 2, 1)
	assertPosition(t, styles[1], 3, 1)
}

func TestAnalyzeHTMLAnalyticsScriptFamily(t *testing.T) {
	both := "<!DOCTYPE html>\n<script src=\"https://www.google-analytics.com/analytics.js\"></script>\n" +
		"<script src=\"https://www.googletagmanager.com/gtag/js?id=G-1\"></script>"
	res := AnalyzeHTML(both)
	if got := issuesWithPrefix(res.Issues, "Using legacy Google Analytics"); len(got) != 1 || got[0].Severity != SeverityWarning {
		t.Fatalf("expected legacy warning, got %+v", got)
	}
	if got := issuesWithPrefix(res.Issues, "Using modern Google Analytics"); len(got) != 0 {
		t.Fatalf("modern analytics should be suppressed by legacy, got %+v", got)
	}

	modern := "<!DOCTYPE html>\n<script async src=\"https://www.googletagmanager.com/gtag/js?id=G-1\"></script>"
	res = AnalyzeHTML(modern)
	got := issuesWithPrefix(res.Issues, "Using modern Google Analytics")
	if len(got) != 1 || got[0].Severity != SeveritySuccess {
		t.Fatalf("expected modern success, got %+v", got)
	}
	assertPosition(t, got[0], 2, 32)
}

func TestAnalyzeHTMLDeprecatedTags(t *testing.T) {
	res := AnalyzeHTML("<!DOCTYPE html>\n<center>a</center><FONT>b</FONT>\n<center>c</center>")
	deprecated := issuesWithPrefix(res.Issues, "Deprecated")
	if len(deprecated) != 2 {
		t.Fatalf("expected 2 deprecated tag errors, got %+v", deprecated)
	}
	if deprecated[0].Message != "Deprecated <center> tag detected" || deprecated[1].Message != "Deprecated <font> tag detected" {
		t.Fatalf("unexpected messages: %q, %q", deprecated[0].Message, deprecated[1].Message)
	}
	assertPosition(t, deprecated[0], 2, 1)
	assertPosition(t, deprecated[1], 2, 19)
}

func TestAnalyzeHTMLViewport(t *testing.T) {
	res := AnalyzeHTML("<!DOCTYPE html><meta charset=\"utf-8\">")
	viewport := issuesWithPrefix(res.Issues, "No viewport meta tag found")
	if len(viewport) != 1 || viewport[0].Severity != SeverityInfo {
		t.Fatalf("expected viewport info, got %+v", viewport)
	}
	assertPosition(t, viewport[0], 1, 16)

	res = AnalyzeHTML("<!DOCTYPE html><p>no meta</p>")
	if got := issuesWithPrefix(res.Issues, "No viewport"); len(got) != 0 {
		t.Fatalf("viewport check needs a meta tag, got %+v", got)
	}
}

func TestAnalyzeHTMLScriptSmells(t *testing.T) {
	loop := "<!DOCTYPE html>\n<script>\nfor (let i = 0; i < 3; i++ {\n}\n</script>"
	res := AnalyzeHTML(loop)
	parens := issuesWithPrefix(res.Issues, "JavaScript syntax error")
	if len(parens) != 1 || parens[0].Severity != SeverityError {
		t.Fatalf("expected for-loop error, got %+v", parens)
	}
	assertPosition(t, parens[0], 3, 1)

	res = AnalyzeHTML("<!DOCTYPE html>\n<script>\nfor (let i = 0; i < 3; i++) {\n}\n</script>")
	if got := issuesWithPrefix(res.Issues, "JavaScript syntax error"); len(got) != 0 {
		t.Fatalf("unexpected for-loop error: %+v", got)
	}

	res = AnalyzeHTML("<!DOCTYPE html>\n<script>let x = 5</script>")
	semis := issuesWithPrefix(res.Issues, "JavaScript style issue")
	if len(semis) != 1 || semis[0].Severity != SeverityWarning {
		t.Fatalf("expected missing semicolon warning, got %+v", semis)
	}
	assertPosition(t, semis[0], 2, 9)

	res = AnalyzeHTML("<!DOCTYPE html>\n<script>let x = 5;</script>")
	if got := issuesWithPrefix(res.Issues, "JavaScript style issue"); len(got) != 0 {
		t.Fatalf("unexpected missing semicolon warning: %+v", got)
	}
}

func TestAnalyzeHTMLMalformedAttributes(t *testing.T) {
	res := AnalyzeHTML("<!DOCTYPE html>\n<div id=test>x</div>\n<a href=\"ok\">y</a>")
	malformed := issuesWithPrefix(res.Issues, "Malformed HTML attribute")
	if len(malformed) != 1 {
		t.Fatalf("expected 1 malformed attribute, got %+v", malformed)
	}
	if malformed[0].Message != "Malformed HTML attribute: id" {
		t.Fatalf("unexpected message %q", malformed[0].Message)
	}
	if malformed[0].Suggestion != `Wrap the attribute value in quotes: id="value"` {
		t.Fatalf("unexpected suggestion %q", malformed[0].Suggestion)
	}
	assertPosition(t, malformed[0], 2, 1)
}

func TestAnalyzeHTMLCheckOrder(t *testing.T) {
	html := "<div id=x style=\"a\"><center>hi\n<img src=\"p.png\">"
	res := AnalyzeHTML(html)
	var got []string
	for _, issue := range res.Issues {
		got = append(got, issue.Message)
	}
	want := []string{
		"Missing DOCTYPE declaration",
		"Unclosed tag: <div>",
		"Unclosed tag: <center>",
		"Inline styles detected",
		"Deprecated <center> tag detected",
		"Image missing alt attribute",
		"Malformed HTML attribute: id",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order:\n got %q\nwant %q", got, want)
	}
}

func TestAnalyzeHTMLIssuesCarryRuleIDs(t *testing.T) {
	html := "<div id=x style=\"a\"><center>hi\n<img src=\"p.png\">"
	var got []string
	for _, issue := range AnalyzeHTML(html).Issues {
		got = append(got, issue.Rule)
	}
	want := []string{
		RuleDoctype,
		RuleTagBalance,
		RuleTagBalance,
		RuleInlineStyle,
		RuleDeprecatedTag,
		RuleImageAlt,
		RuleMalformedAttr,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected rules:\n got %q\nwant %q", got, want)
	}

	clean := AnalyzeHTML("<!DOCTYPE html>\n<p>ok</p>").Issues
	if len(clean) != 1 || clean[0].Rule != "" {
		t.Fatalf("expected success issue without a rule, got %+v", clean)
	}
}

func TestAnalyzeHTMLIdempotent(t *testing.T) {
	html := "<div><p>text</div>\n<img src=x>\n<script>let y = 2</script>"
	first := AnalyzeHTML(html)
	second := AnalyzeHTML(html)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results across calls")
	}
}

func TestAnalyzeHTMLHostileInputNeverFails(t *testing.T) {
	inputs := []string{
		"\x00<\xff>ü<div",
		strings.Repeat("<div>", 2000),
		strings.Repeat("a", 50000) + "<p",
		"<script>",
		"</>< >",
	}
	for _, input := range inputs {
		res := AnalyzeHTML(input)
		if len(res.Issues) == 0 {
			t.Fatalf("expected at least one issue for %q", input[:min(len(input), 20)])
		}
		for _, issue := range res.Issues {
			if (issue.Line == nil) != (issue.Column == nil) {
				t.Fatalf("line/column must be set together: %+v", issue)
			}
			if issue.HasPosition() && (*issue.Line < 1 || *issue.Column < 1) {
				t.Fatalf("invalid position: %+v", issue)
			}
		}
	}
}
