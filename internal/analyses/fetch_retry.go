package analyses

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"markupcheck-backend/internal/fetch"
)

const (
	fetchRetryBaseDelay = 300 * time.Millisecond
	fetchRetryMax       = 2
)

// Fetcher retrieves remote documents for URL analyses.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Document, error)
}

type retryingFetcher struct {
	base       Fetcher
	baseDelay  time.Duration
	requestID  string
	analysisID string
}

func newRetryingFetcher(base Fetcher, analysisID, requestID string) Fetcher {
	if base == nil {
		return nil
	}
	return retryingFetcher{
		base:       base,
		baseDelay:  fetchRetryBaseDelay,
		requestID:  requestID,
		analysisID: analysisID,
	}
}

func (r retryingFetcher) Fetch(ctx context.Context, rawURL string) (fetch.Document, error) {
	var doc fetch.Document
	attempt := 0
	backoff := retry.WithMaxRetries(fetchRetryMax, retry.NewExponential(r.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		got, err := r.base.Fetch(ctx, rawURL)
		if err == nil {
			doc = got
			return nil
		}
		if !shouldRetryFetch(err) {
			return err
		}
		log.Printf("fetch retry attempt=%d request_id=%s analysis_id=%s error=%s", attempt, r.requestID, r.analysisID, sanitizeError(err))
		return retry.RetryableError(err)
	})
	return doc, err
}

func shouldRetryFetch(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fetch.ErrInvalidURL) || errors.Is(err, fetch.ErrTooLarge) || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *fetch.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof")
}
