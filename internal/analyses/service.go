package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"markupcheck-backend/internal/fetch"
	"markupcheck-backend/internal/markup"
	"markupcheck-backend/internal/queue"
	"markupcheck-backend/internal/shared/metrics"
	"markupcheck-backend/internal/shared/storage/object"
	"markupcheck-backend/internal/shared/telemetry"
)

const (
	defaultMaxHTMLBytes = 2 << 20
	sourceObjectName    = "source.html"
	snapshotObjectName  = "snapshot.html"
)

// Service contains business logic for analyses.
type Service struct {
	Repo         Repo
	Store        object.ObjectStore
	Fetcher      Fetcher
	Analyzer     markup.Analyzer
	MaxHTMLBytes int64
	// Queue hands analyses to an out-of-process worker. When nil, or when a
	// send fails, analyses are processed in a background goroutine.
	Queue queue.Client
}

func (s *Service) maxHTMLBytes() int64 {
	if s.MaxHTMLBytes <= 0 {
		return defaultMaxHTMLBytes
	}
	return s.MaxHTMLBytes
}

// AnalyzeNow runs the analyzer synchronously over html.
func (s *Service) AnalyzeNow(html string) (markup.Report, error) {
	if err := s.validateHTML(html); err != nil {
		return markup.Report{}, err
	}
	report := s.Analyzer.Analyze(html)
	recordReport(report)
	return report, nil
}

// AnalyzeURL fetches rawURL and analyzes the returned document.
func (s *Service) AnalyzeURL(ctx context.Context, rawURL string) (fetch.Document, markup.Report, error) {
	doc, err := s.Fetch(ctx, rawURL)
	if err != nil {
		return fetch.Document{}, markup.Report{}, err
	}
	report, err := s.AnalyzeNow(doc.Body)
	if err != nil {
		return doc, markup.Report{}, err
	}
	return doc, report, nil
}

// Fetch retrieves a remote document through the configured fetcher.
func (s *Service) Fetch(ctx context.Context, rawURL string) (fetch.Document, error) {
	if strings.TrimSpace(rawURL) == "" {
		return fetch.Document{}, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if s.Fetcher == nil {
		return fetch.Document{}, errors.New("fetcher not configured")
	}
	return newRetryingFetcher(s.Fetcher, "", requestIDFromContext(ctx)).Fetch(ctx, rawURL)
}

// Create records a queued analysis and kicks off asynchronous completion.
// HTML sources are written to the object store before the job is queued.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Analysis, error) {
	if userID == "" {
		return Analysis{}, errors.New("userID is required")
	}
	hasHTML := strings.TrimSpace(in.HTML) != ""
	hasURL := strings.TrimSpace(in.URL) != ""
	if hasHTML == hasURL {
		return Analysis{}, fmt.Errorf("%w: exactly one of html or url is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	analysis := Analysis{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if hasHTML {
		if err := s.validateHTML(in.HTML); err != nil {
			return Analysis{}, err
		}
		if s.Store == nil {
			return Analysis{}, errors.New("object store not configured")
		}
		obj, err := s.Store.Put(ctx, userID, sourceObjectName, strings.NewReader(in.HTML))
		if err != nil {
			return Analysis{}, fmt.Errorf("storage put source: %w", err)
		}
		analysis.SourceKind = SourceHTML
		analysis.SourceKey = obj.Key
	} else {
		normalized, err := fetch.NormalizeURL(in.URL)
		if err != nil {
			return Analysis{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		analysis.SourceKind = SourceURL
		analysis.SourceURL = normalized
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}
	telemetry.Info("analysis.status", statusFields(ctx, analysis, StatusQueued, "->queued"))

	s.dispatch(ctx, analysis)

	return analysis, nil
}

func (s *Service) dispatch(ctx context.Context, analysis Analysis) {
	if s.Queue != nil {
		msg := queue.NewMessage(analysis.ID, requestIDFromContext(ctx), time.Now())
		err := s.Queue.Send(ctx, msg)
		if err == nil {
			return
		}
		telemetry.Error("analysis.enqueue_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysis.ID,
			"error":       err.Error(),
		})
	}
	go s.completeAsync(detach(ctx), analysis.ID)
}

// ProcessAnalysis runs a queued analysis to completion. Analyses already in a
// terminal state are left untouched so redelivered messages are harmless.
// Processing failures are recorded on the analysis; the returned error only
// reports that the analysis could not be loaded.
func (s *Service) ProcessAnalysis(ctx context.Context, analysisID string) error {
	analysis, err := s.Get(ctx, analysisID)
	if err != nil {
		return err
	}
	if analysis.Terminal() {
		return nil
	}
	s.completeAsync(ctx, analysisID)
	return nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, fmt.Errorf("%w: analysisID is required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) validateHTML(html string) error {
	if strings.TrimSpace(html) == "" {
		return fmt.Errorf("%w: html is required", ErrInvalidInput)
	}
	if int64(len(html)) > s.maxHTMLBytes() {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, len(html), s.maxHTMLBytes())
	}
	return nil
}

func (s *Service) completeAsync(ctx context.Context, analysisID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failAnalysis(ctx, analysisID, "", fmt.Errorf("panic: %v", r), nil)
		}
	}()
	startedAt := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, analysisID, StatusUpdate{Status: StatusProcessing, StartedAt: &startedAt}); err != nil {
		s.failAnalysis(ctx, analysisID, "", fmt.Errorf("set processing failed: %w", err), &startedAt)
		return
	}

	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		s.failAnalysis(ctx, analysisID, "", fmt.Errorf("analysis lookup: %w", err), &startedAt)
		return
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", statusFields(ctx, analysis, StatusProcessing, "queued->processing"))

	source, err := s.loadSource(ctx, analysis)
	if err != nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, err, &startedAt)
		return
	}

	report := s.Analyzer.Analyze(source)
	recordReport(report)

	completedAt := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, analysisID, StatusUpdate{
		Status:      StatusCompleted,
		Report:      &report,
		CompletedAt: &completedAt,
	}); err != nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, fmt.Errorf("set analysis report failed: %w", err), &startedAt)
		return
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	fields := statusFields(ctx, analysis, StatusCompleted, "processing->completed")
	fields["issues"] = len(report.Issues)
	fields["framework"] = report.Framework
	fields["duration_ms"] = durationMs(&startedAt, &completedAt)
	telemetry.Info("analysis.status", fields)
}

// loadSource returns the HTML to analyze. Fetched documents are snapshotted
// to the object store so the analysed bytes can be retrieved later.
func (s *Service) loadSource(ctx context.Context, analysis Analysis) (string, error) {
	switch analysis.SourceKind {
	case SourceHTML:
		if s.Store == nil {
			return "", errors.New("storage: object store not configured")
		}
		text, err := loadText(ctx, s.Store, analysis.SourceKey, s.maxHTMLBytes())
		if err != nil {
			return "", fmt.Errorf("storage load source key=%s: %w", analysis.SourceKey, err)
		}
		return text, nil
	case SourceURL:
		if s.Fetcher == nil {
			return "", errors.New("fetch: fetcher not configured")
		}
		doc, err := newRetryingFetcher(s.Fetcher, analysis.ID, requestIDFromContext(ctx)).Fetch(ctx, analysis.SourceURL)
		if err != nil {
			return "", err
		}
		if int64(len(doc.Body)) > s.maxHTMLBytes() {
			return "", fmt.Errorf("%w: fetched %d bytes", ErrTooLarge, len(doc.Body))
		}
		s.snapshot(ctx, analysis, doc.Body)
		return doc.Body, nil
	default:
		return "", fmt.Errorf("%w: unknown source kind %q", ErrInvalidInput, analysis.SourceKind)
	}
}

func (s *Service) snapshot(ctx context.Context, analysis Analysis, body string) {
	if s.Store == nil {
		return
	}
	obj, err := s.Store.Put(ctx, analysis.UserID, snapshotObjectName, strings.NewReader(body))
	if err == nil {
		err = s.Repo.UpdateSourceKey(ctx, analysis.ID, obj.Key)
	}
	if err != nil {
		telemetry.Error("analysis.snapshot_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysis.ID,
			"error":       sanitizeError(err),
		})
	}
}

func (s *Service) failAnalysis(ctx context.Context, analysisID, userID string, err error, startedAt *time.Time) {
	code := classifyFailure(err)
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.UpdateStatus(context.Background(), analysisID, StatusUpdate{
		Status:       StatusFailed,
		ErrorCode:    &code,
		ErrorMessage: &msg,
		CompletedAt:  &completedAt,
	}); updateErr != nil {
		telemetry.Error("analysis.fail_update", map[string]any{
			"analysis_id": analysisID,
			"error":       updateErr.Error(),
			"cause":       msg,
		})
	}
	metrics.IncAnalysisFailed()
	if startedAt != nil {
		metrics.ObserveAnalysisDurationMs(durationMs(startedAt, &completedAt))
	}
	fields := statusFields(ctx, Analysis{ID: analysisID, UserID: userID}, StatusFailed, "processing->failed")
	fields["error_code"] = code
	fields["duration_ms"] = durationMs(startedAt, &completedAt)
	telemetry.Info("analysis.status", fields)
}

func recordReport(report markup.Report) {
	metrics.IncDocumentsAnalyzed()
	metrics.AddIssues(string(markup.SeverityError), report.Summary.Errors)
	metrics.AddIssues(string(markup.SeverityWarning), report.Summary.Warnings)
	metrics.AddIssues(string(markup.SeverityInfo), report.Summary.Infos)
	metrics.AddIssues(string(markup.SeveritySuccess), report.Summary.Successes)
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	var statusErr *fetch.StatusError
	switch {
	case errors.Is(err, ErrTooLarge), errors.Is(err, fetch.ErrTooLarge):
		return ErrorCodeTooLarge
	case errors.Is(err, ErrInvalidInput), errors.Is(err, fetch.ErrInvalidURL):
		return ErrorCodeValidation
	case errors.As(err, &statusErr), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeFetch
	}
	msg := strings.ToLower(err.Error())
	if strings.HasPrefix(msg, "fetch") {
		return ErrorCodeFetch
	}
	if strings.Contains(msg, "storage") || strings.Contains(msg, "set processing") || strings.Contains(msg, "analysis report") {
		return ErrorCodeStorage
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func loadText(ctx context.Context, store object.ObjectStore, key string, maxBytes int64) (string, error) {
	body, err := store.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxBytes {
		return "", ErrTooLarge
	}
	return string(data), nil
}
