package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"markupcheck-backend/internal/cache"
	"markupcheck-backend/internal/shared/metrics"
	"markupcheck-backend/internal/shared/telemetry"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultMaxBytes  = 5 << 20
	defaultUserAgent = "markupcheck/1.0"
	maxRedirects     = 3
	cacheKeyPrefix   = "fetch:"
)

// ErrTooLarge is returned when a response body exceeds the byte cap.
var ErrTooLarge = errors.New("response too large")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: upstream returned %s", e.URL, e.Status)
}

// Document is a fetched page decoded to UTF-8.
type Document struct {
	URL         string    `json:"url"`
	FinalURL    string    `json:"finalUrl"`
	StatusCode  int       `json:"statusCode"`
	ContentType string    `json:"contentType"`
	Title       string    `json:"title,omitempty"`
	Body        string    `json:"body"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Cached      bool      `json:"-"`
}

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Cache     cache.Backend
	CacheTTL  time.Duration
	Client    *http.Client

	// AllowPrivate permits loopback and private network targets. A custom
	// Client is only covered by the host name check.
	AllowPrivate bool
}

// Fetcher retrieves remote HTML documents.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	cache     cache.Backend
	cacheTTL  time.Duration
	guarded   bool
}

// New constructs a Fetcher.
func New(opts Options) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout:   timeout,
			Transport: newTransport(opts.AllowPrivate),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    client,
		maxBytes:  maxBytes,
		userAgent: userAgent,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		guarded:   !opts.AllowPrivate,
	}
}

func newTransport(allowPrivate bool) *http.Transport {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !allowPrivate {
		dialer.Control = dialControl
		// A proxy would dial the target itself and skip the address check.
		transport.Proxy = nil
	}
	transport.DialContext = dialer.DialContext
	return transport
}

// Fetch retrieves rawURL, normalizing it first. Responses are cached by
// normalized URL when a cache is configured.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		return Document{}, err
	}
	if f.guarded {
		if u, err := url.Parse(target); err == nil && internalHost(u.Hostname()) {
			return Document{}, ErrBlockedHost
		}
	}

	if doc, ok := f.lookup(ctx, target); ok {
		metrics.IncFetchCacheHit()
		return doc, nil
	}

	metrics.IncFetch()
	start := time.Now()
	doc, err := f.get(ctx, target)
	metrics.ObserveFetchDurationMs(metrics.SinceMs(start))
	if err != nil {
		metrics.IncFetchFailed()
		telemetry.Error("fetch.failed", map[string]any{
			"url":   target,
			"error": err.Error(),
		})
		return Document{}, err
	}
	telemetry.Info("fetch.complete", map[string]any{
		"url":          target,
		"final_url":    doc.FinalURL,
		"status":       doc.StatusCode,
		"bytes":        len(doc.Body),
		"content_type": doc.ContentType,
		"duration_ms":  metrics.SinceMs(start),
	})

	f.store(ctx, target, doc)
	return doc, nil
}

func (f *Fetcher) get(ctx context.Context, target string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrBlockedHost) {
			return Document{}, ErrBlockedHost
		}
		return Document{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Document{}, &StatusError{URL: target, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", target, err)
	}
	if int64(len(raw)) > f.maxBytes {
		return Document{}, fmt.Errorf("fetch %s: %w (limit %d bytes)", target, ErrTooLarge, f.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	body := decode(raw, contentType)
	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return Document{
		URL:         target,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Title:       Title(body),
		Body:        body,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// decode converts raw to UTF-8 using the declared or sniffed charset. Bytes
// that cannot be decoded are returned as-is.
func decode(raw []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// Title returns the text of the first <title> element, if any.
func Title(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))
	inTitle := false
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "title" && inTitle {
				return strings.Join(strings.Fields(b.String()), " ")
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		}
	}
}

func (f *Fetcher) lookup(ctx context.Context, target string) (Document, bool) {
	if f.cache == nil || f.cacheTTL <= 0 {
		return Document{}, false
	}
	data, ok, err := f.cache.Get(ctx, cacheKeyPrefix+target)
	if err != nil {
		telemetry.Error("fetch.cache_get_failed", map[string]any{"url": target, "error": err.Error()})
		return Document{}, false
	}
	if !ok {
		return Document{}, false
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, false
	}
	doc.Cached = true
	return doc, true
}

func (f *Fetcher) store(ctx context.Context, target string, doc Document) {
	if f.cache == nil || f.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return
	}
	if err := f.cache.Set(ctx, cacheKeyPrefix+target, data, f.cacheTTL); err != nil {
		telemetry.Error("fetch.cache_set_failed", map[string]any{"url": target, "error": err.Error()})
	}
}
