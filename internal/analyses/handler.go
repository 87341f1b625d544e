package analyses

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc/pool"

	"markupcheck-backend/internal/fetch"
	"markupcheck-backend/internal/markup"
	"markupcheck-backend/internal/report"
	"markupcheck-backend/internal/shared/server/middleware"
	"markupcheck-backend/internal/shared/server/respond"
)

const (
	maxBatchDocuments = 20
	batchWorkers      = 4
	jsonOverheadBytes = 64 << 10
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.POST("/analyze/url", h.analyzeURL)
	rg.POST("/analyze/batch", h.analyzeBatch)
	rg.GET("/proxy", h.proxy)
	rg.POST("/analyses", h.startAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/report", h.getReport)
}

type analyzeRequest struct {
	HTML string `json:"html"`
}

type analyzeURLRequest struct {
	URL string `json:"url"`
}

type batchDocument struct {
	Name string `json:"name"`
	HTML string `json:"html"`
}

type batchRequest struct {
	Documents []batchDocument `json:"documents"`
}

type batchResult struct {
	Name   string         `json:"name"`
	Report *markup.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func (h *Handler) analyze(c *gin.Context) {
	c.Set("sourceKind", SourceHTML)
	var req analyzeRequest
	if !h.bindJSON(c, &req, 1) {
		return
	}
	rep, err := h.Svc.AnalyzeNow(req.HTML)
	if err != nil {
		h.writeInputError(c, err)
		return
	}
	respond.OK(c, rep)
}

func (h *Handler) analyzeURL(c *gin.Context) {
	c.Set("sourceKind", SourceURL)
	var req analyzeURLRequest
	if !h.bindJSON(c, &req, 1) {
		return
	}
	doc, rep, err := h.Svc.AnalyzeURL(requestContext(c), req.URL)
	if err != nil {
		h.writeFetchError(c, err)
		return
	}
	respond.OK(c, gin.H{
		"url":       doc.URL,
		"finalUrl":  doc.FinalURL,
		"title":     doc.Title,
		"issues":    rep.Issues,
		"fixedCode": rep.FixedCode,
		"framework": rep.Framework,
		"summary":   rep.Summary,
	})
}

func (h *Handler) analyzeBatch(c *gin.Context) {
	c.Set("sourceKind", SourceHTML)
	var req batchRequest
	if !h.bindJSON(c, &req, maxBatchDocuments) {
		return
	}
	if len(req.Documents) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documents is required", nil)
		return
	}
	if len(req.Documents) > maxBatchDocuments {
		respond.Error(c, http.StatusBadRequest, "validation_error", fmt.Sprintf("at most %d documents per batch", maxBatchDocuments), gin.H{
			"limit": maxBatchDocuments,
			"got":   len(req.Documents),
		})
		return
	}

	results := make([]batchResult, len(req.Documents))
	p := pool.New().WithMaxGoroutines(batchWorkers)
	for i, doc := range req.Documents {
		p.Go(func() {
			name := strings.TrimSpace(doc.Name)
			if name == "" {
				name = fmt.Sprintf("document-%d", i+1)
			}
			results[i] = batchResult{Name: name}
			rep, err := h.Svc.AnalyzeNow(doc.HTML)
			if err != nil {
				results[i].Error = err.Error()
				return
			}
			results[i].Report = &rep
		})
	}
	p.Wait()

	var total markup.Summary
	for _, r := range results {
		if r.Report == nil {
			continue
		}
		total.Errors += r.Report.Summary.Errors
		total.Warnings += r.Report.Summary.Warnings
		total.Infos += r.Report.Summary.Infos
		total.Successes += r.Report.Summary.Successes
	}
	respond.OK(c, gin.H{
		"results": results,
		"summary": total,
	})
}

func (h *Handler) proxy(c *gin.Context) {
	c.Set("sourceKind", SourceURL)
	target := strings.TrimSpace(c.Query("url"))
	if target == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "url query parameter is required", nil)
		return
	}
	doc, err := h.Svc.Fetch(requestContext(c), target)
	if err != nil {
		h.writeFetchError(c, err)
		return
	}
	c.Header("X-Final-Url", doc.FinalURL)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc.Body))
}

func (h *Handler) startAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	var in Input
	if !h.bindJSON(c, &in, 1) {
		return
	}
	if strings.TrimSpace(in.URL) != "" {
		c.Set("sourceKind", SourceURL)
	} else {
		c.Set("sourceKind", SourceHTML)
	}

	analysis, err := h.Svc.Create(requestContext(c), userID, in)
	if err != nil {
		h.writeInputError(c, err)
		return
	}
	c.Set("analysisId", analysis.ID)
	c.Set("statusTransition", "->queued")

	respond.Accepted(c, "/api/v1/analyses/"+analysis.ID, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysis, ok := h.loadOwned(c)
	if !ok {
		return
	}
	respond.OK(c, analysisView(analysis, true))
}

func (h *Handler) getReport(c *gin.Context) {
	analysis, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if analysis.Status != StatusCompleted || analysis.Report == nil {
		respond.Error(c, http.StatusConflict, "not_ready", "analysis has not completed", gin.H{
			"status": analysis.Status,
		})
		return
	}

	title := "Markup report: submitted HTML"
	if analysis.SourceURL != "" {
		title = "Markup report: " + analysis.SourceURL
	}
	switch strings.ToLower(c.DefaultQuery("format", "md")) {
	case "md", "markdown":
		respond.Document(c, "text/markdown; charset=utf-8", report.Markdown(*analysis.Report, title))
	case "html":
		page, err := report.HTML(*analysis.Report, title)
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to render report", nil)
			return
		}
		respond.Document(c, "text/html; charset=utf-8", page)
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "format must be md or html", nil)
	}
}

func (h *Handler) listAnalyses(c *gin.Context) {
	if middleware.IsAnonymous(c) {
		respond.Error(c, http.StatusUnauthorized, "identity_required", "Send an X-Guest-Id header to view history", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	analyses, err := h.Svc.List(requestContext(c), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		resp = append(resp, analysisView(a, false))
	}
	respond.OK(c, resp)
}

// loadOwned fetches the analysis named by the :id param. Analyses owned by
// another caller are reported as missing.
func (h *Handler) loadOwned(c *gin.Context) (Analysis, bool) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return Analysis{}, false
	}
	c.Set("analysisId", analysisID)

	analysis, err := h.Svc.Get(requestContext(c), analysisID)
	if err == nil && analysis.UserID != middleware.UserIDFromContext(c) {
		err = ErrNotFound
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return Analysis{}, false
	}
	return analysis, true
}

func analysisView(a Analysis, withReport bool) gin.H {
	item := gin.H{
		"id":         a.ID,
		"status":     a.Status,
		"sourceKind": a.SourceKind,
		"createdAt":  a.CreatedAt,
	}
	if a.SourceURL != "" {
		item["sourceUrl"] = a.SourceURL
	}
	if a.CompletedAt != nil {
		item["completedAt"] = a.CompletedAt
	}
	if a.Status == StatusFailed {
		item["errorCode"] = a.ErrorCode
		if a.ErrorMessage != nil {
			item["errorMessage"] = *a.ErrorMessage
		}
	}
	if a.Status == StatusCompleted && a.Report != nil {
		item["summary"] = a.Report.Summary
		if a.Report.Framework != "" {
			item["framework"] = a.Report.Framework
		}
		if withReport {
			item["report"] = a.Report
		}
	}
	return item
}

// bindJSON decodes the request body, capping it at docs HTML payloads plus
// JSON overhead.
func (h *Handler) bindJSON(c *gin.Context, dst any, docs int) bool {
	limit := (h.Svc.maxHTMLBytes()+jsonOverheadBytes)*int64(docs) + jsonOverheadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "request body too large", gin.H{
				"limitBytes": maxErr.Limit,
			})
			return false
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return false
	}
	return true
}

func (h *Handler) writeInputError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", inputMessage(err), nil)
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "HTML exceeds the size limit", gin.H{
			"limitBytes": h.Svc.maxHTMLBytes(),
		})
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to analyze", nil)
	}
}

func (h *Handler) writeFetchError(c *gin.Context, err error) {
	var statusErr *fetch.StatusError
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, fetch.ErrInvalidURL):
		respond.Error(c, http.StatusBadRequest, "validation_error", inputMessage(err), nil)
	case errors.As(err, &statusErr):
		respond.Error(c, http.StatusBadGateway, "fetch_failed", "upstream returned an error", gin.H{
			"upstreamStatus": statusErr.StatusCode,
		})
	case errors.Is(err, fetch.ErrTooLarge), errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusBadGateway, "fetch_failed", "upstream document too large", nil)
	default:
		respond.Error(c, http.StatusBadGateway, "fetch_failed", "failed to fetch url", nil)
	}
}

// inputMessage strips the sentinel prefix from a validation error.
func inputMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{ErrInvalidInput.Error() + ": ", fetch.ErrInvalidURL.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}
