package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	analysisStartedTotal   atomic.Uint64
	analysisCompletedTotal atomic.Uint64
	analysisFailedTotal    atomic.Uint64
	documentsAnalyzedTotal atomic.Uint64
	fetchTotal             atomic.Uint64
	fetchFailedTotal       atomic.Uint64
	fetchCacheHitsTotal    atomic.Uint64
	jobsReceivedTotal      atomic.Uint64
	jobsCompletedTotal     atomic.Uint64
	jobsFailedTotal        atomic.Uint64
	jobsDroppedTotal       atomic.Uint64

	issuesMu    sync.Mutex
	issuesTotal = map[string]uint64{}

	analysisDuration = newHistogram([]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000})
	fetchDuration    = newHistogram([]float64{50, 100, 250, 500, 1000, 2500, 5000, 10000})
)

// severityOrder fixes the label order of the issues counter.
var severityOrder = []string{"error", "warning", "info", "success"}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Add(1)
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Add(1)
}

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() {
	analysisFailedTotal.Add(1)
}

// IncDocumentsAnalyzed counts one document run through the engine.
func IncDocumentsAnalyzed() {
	documentsAnalyzedTotal.Add(1)
}

// AddIssues counts reported issues by severity.
func AddIssues(severity string, n int) {
	if n <= 0 {
		return
	}
	issuesMu.Lock()
	issuesTotal[severity] += uint64(n)
	issuesMu.Unlock()
}

// IncFetch counts an upstream fetch attempt.
func IncFetch() {
	fetchTotal.Add(1)
}

// IncFetchFailed counts a failed upstream fetch.
func IncFetchFailed() {
	fetchFailedTotal.Add(1)
}

// IncFetchCacheHit counts a fetch served from cache.
func IncFetchCacheHit() {
	fetchCacheHitsTotal.Add(1)
}

// IncJobsReceived counts a queue message claimed by a worker.
func IncJobsReceived() {
	jobsReceivedTotal.Add(1)
}

// IncJobsCompleted counts a queue message processed and acknowledged.
func IncJobsCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobsFailed counts a queue message left for redelivery.
func IncJobsFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobsDropped counts a queue message acknowledged without processing.
func IncJobsDropped() {
	jobsDroppedTotal.Add(1)
}

// ObserveFetchDurationMs records an upstream fetch duration in milliseconds.
func ObserveFetchDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	fetchDuration.Observe(value)
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_started_total", "Total analyses started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analyses completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Total analyses failed", analysisFailedTotal.Load())
	writeCounter(&buf, "documents_analyzed_total", "Total documents run through the engine", documentsAnalyzedTotal.Load())
	writeIssues(&buf)
	writeCounter(&buf, "fetch_total", "Total upstream fetches", fetchTotal.Load())
	writeCounter(&buf, "fetch_failed_total", "Total failed upstream fetches", fetchFailedTotal.Load())
	writeCounter(&buf, "fetch_cache_hits_total", "Total fetches served from cache", fetchCacheHitsTotal.Load())
	writeCounter(&buf, "jobs_received_total", "Total queue messages received", jobsReceivedTotal.Load())
	writeCounter(&buf, "jobs_completed_total", "Total queue messages completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "jobs_failed_total", "Total queue messages left for redelivery", jobsFailedTotal.Load())
	writeCounter(&buf, "jobs_dropped_total", "Total unrecoverable queue messages dropped", jobsDroppedTotal.Load())
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	writeHistogram(&buf, "fetch_duration_ms", "Upstream fetch duration in milliseconds", fetchDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	// counts are per-bucket; writeHistogram accumulates them.
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeIssues(buf *bytes.Buffer) {
	issuesMu.Lock()
	defer issuesMu.Unlock()
	fmt.Fprintf(buf, "# HELP issues_reported_total Total issues reported by severity\n")
	fmt.Fprintf(buf, "# TYPE issues_reported_total counter\n")
	for _, sev := range severityOrder {
		fmt.Fprintf(buf, "issues_reported_total{severity=\"%s\"} %d\n", sev, issuesTotal[sev])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMs returns the milliseconds elapsed since start.
func SinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
