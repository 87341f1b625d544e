package analyses

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"markupcheck-backend/internal/fetch"
	"markupcheck-backend/internal/markup"
	"markupcheck-backend/internal/shared/storage/object/local"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls int
	errs  []error
	doc   fetch.Document
}

func (s *stubFetcher) Fetch(ctx context.Context, rawURL string) (fetch.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return fetch.Document{}, err
		}
	}
	doc := s.doc
	doc.URL = rawURL
	if doc.FinalURL == "" {
		doc.FinalURL = rawURL
	}
	return doc, nil
}

func (s *stubFetcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func setupService(t *testing.T, fetcher Fetcher) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := &Service{
		Repo:         repo,
		Store:        local.New(t.TempDir()),
		Fetcher:      fetcher,
		MaxHTMLBytes: 1024,
	}
	return svc, repo
}

func seedAnalysis(t *testing.T, repo *MemoryRepo, analysis Analysis) {
	t.Helper()
	if analysis.Status == "" {
		analysis.Status = StatusQueued
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now().UTC()
	}
	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("create analysis: %v", err)
	}
}

func TestAnalyzeNowValidatesInput(t *testing.T) {
	svc, _ := setupService(t, nil)

	if _, err := svc.AnalyzeNow("   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.AnalyzeNow(strings.Repeat("a", 1025)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	rep, err := svc.AnalyzeNow("<html><p>hi</html>")
	if err != nil {
		t.Fatalf("AnalyzeNow: %v", err)
	}
	if rep.Summary.Errors != 1 {
		t.Fatalf("expected 1 error, got %+v", rep.Summary)
	}
}

func TestAnalyzeNowUsesContextRadius(t *testing.T) {
	svc, _ := setupService(t, nil)
	svc.Analyzer = markup.Analyzer{ContextRadius: 1}

	html := "<!DOCTYPE html>\n<html>\n<head></head>\n<body>\n<img src=\"a.png\">\n</body>\n</html>"
	rep, err := svc.AnalyzeNow(html)
	if err != nil {
		t.Fatalf("AnalyzeNow: %v", err)
	}
	for _, issue := range rep.Issues {
		if issue.Message != "Image missing alt attribute" {
			continue
		}
		if got := strings.Count(issue.SourceExcerpt, "\n"); got != 4 {
			t.Fatalf("expected 3 context lines plus caret, got %d lines:\n%s", got, issue.SourceExcerpt)
		}
		return
	}
	t.Fatalf("expected an image alt issue, got %+v", rep.Issues)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := setupService(t, &stubFetcher{})

	tests := []struct {
		name string
		in   Input
		want error
	}{
		{name: "empty", in: Input{}, want: ErrInvalidInput},
		{name: "both", in: Input{HTML: "<p></p>", URL: "example.com"}, want: ErrInvalidInput},
		{name: "bad scheme", in: Input{URL: "ftp://example.com"}, want: ErrInvalidInput},
		{name: "too large", in: Input{HTML: strings.Repeat("a", 2048)}, want: ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "guest:abc", tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateHTMLStoresSourceAndCompletes(t *testing.T) {
	svc, repo := setupService(t, nil)

	analysis, err := svc.Create(context.Background(), "guest:abc", Input{HTML: "<html><center>x</center></html>"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if analysis.Status != StatusQueued || analysis.SourceKind != SourceHTML {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}
	if analysis.SourceKey == "" {
		t.Fatalf("expected source key to be set")
	}

	got := waitForTerminal(t, repo, analysis.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", got.Status, got.ErrorMessage)
	}
	if got.Report == nil || got.Report.Summary.Warnings == 0 {
		t.Fatalf("expected warnings in report, got %+v", got.Report)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatalf("expected timestamps to be set")
	}
}

func TestCompleteAsyncURLSnapshotsSource(t *testing.T) {
	fetcher := &stubFetcher{doc: fetch.Document{StatusCode: http.StatusOK, Body: "<div data-v-1a2b id=\"app\"></div>"}}
	svc, repo := setupService(t, fetcher)
	seedAnalysis(t, repo, Analysis{
		ID:         "analysis-url",
		UserID:     "guest:abc",
		SourceKind: SourceURL,
		SourceURL:  "https://example.com/",
	})

	svc.completeAsync(context.Background(), "analysis-url")

	got, err := repo.GetByID(context.Background(), "analysis-url")
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Report == nil || got.Report.Framework != "Vue.js" {
		t.Fatalf("expected Vue.js framework, got %+v", got.Report)
	}
	if got.SourceKey == "" {
		t.Fatalf("expected fetched source to be snapshotted")
	}
	text, err := loadText(context.Background(), svc.Store, got.SourceKey, 1024)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if text != fetcher.doc.Body {
		t.Fatalf("expected snapshot to match fetched body, got %q", text)
	}
}

func TestCompleteAsyncFetchFailureMarksFailed(t *testing.T) {
	fetcher := &stubFetcher{errs: []error{&fetch.StatusError{URL: "https://example.com/", StatusCode: 404, Status: "404 Not Found"}}}
	svc, repo := setupService(t, fetcher)
	seedAnalysis(t, repo, Analysis{
		ID:         "analysis-404",
		UserID:     "guest:abc",
		SourceKind: SourceURL,
		SourceURL:  "https://example.com/",
	})

	svc.completeAsync(context.Background(), "analysis-404")

	got, err := repo.GetByID(context.Background(), "analysis-404")
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorCode != ErrorCodeFetch {
		t.Fatalf("expected %s, got %q", ErrorCodeFetch, got.ErrorCode)
	}
	if got.ErrorMessage == nil || !strings.Contains(*got.ErrorMessage, "404") {
		t.Fatalf("expected error message to mention 404, got %v", got.ErrorMessage)
	}
	if fetcher.Calls() != 1 {
		t.Fatalf("expected client errors not to be retried, got %d calls", fetcher.Calls())
	}
}

func TestCompleteAsyncMissingSourceMarksFailed(t *testing.T) {
	svc, repo := setupService(t, nil)
	seedAnalysis(t, repo, Analysis{
		ID:         "analysis-missing",
		UserID:     "guest:abc",
		SourceKind: SourceHTML,
		SourceKey:  "nobody/missing.html",
	})

	svc.completeAsync(context.Background(), "analysis-missing")

	got, err := repo.GetByID(context.Background(), "analysis-missing")
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if got.Status != StatusFailed || got.ErrorCode != ErrorCodeStorage {
		t.Fatalf("expected failed with %s, got %s/%s", ErrorCodeStorage, got.Status, got.ErrorCode)
	}
}

func TestRetryingFetcherRetriesServerErrors(t *testing.T) {
	fetcher := &stubFetcher{
		errs: []error{&fetch.StatusError{StatusCode: 503, Status: "503 Service Unavailable"}},
		doc:  fetch.Document{Body: "<p>ok</p>"},
	}
	r := retryingFetcher{base: fetcher, baseDelay: time.Millisecond}

	doc, err := r.Fetch(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.Body != "<p>ok</p>" {
		t.Fatalf("unexpected body %q", doc.Body)
	}
	if fetcher.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", fetcher.Calls())
	}
}

func TestRetryingFetcherGivesUp(t *testing.T) {
	unavailable := &fetch.StatusError{StatusCode: 502, Status: "502 Bad Gateway"}
	fetcher := &stubFetcher{errs: []error{unavailable, unavailable, unavailable, unavailable}}
	r := retryingFetcher{base: fetcher, baseDelay: time.Millisecond}

	_, err := r.Fetch(context.Background(), "https://example.com/")
	var statusErr *fetch.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if fetcher.Calls() != fetchRetryMax+1 {
		t.Fatalf("expected %d calls, got %d", fetchRetryMax+1, fetcher.Calls())
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: ErrTooLarge, want: ErrorCodeTooLarge},
		{err: fetch.ErrTooLarge, want: ErrorCodeTooLarge},
		{err: fetch.ErrInvalidURL, want: ErrorCodeValidation},
		{err: &fetch.StatusError{StatusCode: 500}, want: ErrorCodeFetch},
		{err: errors.New("fetch https://x: dial tcp: connection refused"), want: ErrorCodeFetch},
		{err: errors.New("storage load source key=k: missing"), want: ErrorCodeStorage},
		{err: errors.New("boom"), want: ErrorCodeInternal},
	}
	for _, tt := range tests {
		if got := classifyFailure(tt.err); got != tt.want {
			t.Fatalf("classifyFailure(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestMemoryRepoListByUserNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		seedAnalysis(t, repo, Analysis{ID: id, UserID: "guest:abc", SourceKind: SourceHTML, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	seedAnalysis(t, repo, Analysis{ID: "other", UserID: "guest:xyz", SourceKind: SourceHTML})

	got, err := repo.ListByUser(context.Background(), "guest:abc", 2, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected page: %+v", got)
	}

	got, err = repo.ListByUser(context.Background(), "guest:abc", 2, 2)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected second page: %+v", got)
	}
}

func waitForTerminal(t *testing.T, repo Repo, analysisID string) Analysis {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := repo.GetByID(context.Background(), analysisID)
		if err != nil {
			t.Fatalf("get analysis: %v", err)
		}
		if got.Terminal() {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("analysis %s still %s after deadline", analysisID, got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
