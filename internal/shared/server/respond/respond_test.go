package respond

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"markupcheck-backend/internal/shared/telemetry"
)

func TestErrorWritesEnvelopeAndLogsLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	prev := telemetry.SetOutput(&buf)
	defer telemetry.SetOutput(prev)

	r := gin.New()
	r.GET("/client", func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not_found", "Analysis not found", gin.H{"id": "x"})
	})
	r.GET("/server", func(c *gin.Context) {
		Error(c, http.StatusBadGateway, "fetch_failed", "Upstream failed", nil)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/client", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "not_found" || body.Error.Message != "Analysis not found" {
		t.Fatalf("unexpected body %+v", body)
	}
	if !strings.Contains(buf.String(), `"http.client_error"`) {
		t.Fatalf("expected client error log, got %s", buf.String())
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/server", nil))
	if !strings.Contains(buf.String(), `"http.error"`) {
		t.Fatalf("expected server error log, got %s", buf.String())
	}
}

func TestAcceptedSetsLocation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		Accepted(c, "/api/v1/analyses/a1", gin.H{"analysisId": "a1"})
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	if got := resp.Header().Get("Location"); got != "/api/v1/analyses/a1" {
		t.Fatalf("unexpected Location %q", got)
	}
}

func TestDocumentWritesBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		Document(c, "text/markdown; charset=utf-8", "# Report\n")
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "# Report\n" || resp.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("unexpected document response %q %v", body, resp.Header())
	}
	if !strings.HasPrefix(resp.Header().Get("Content-Type"), "text/markdown") {
		t.Fatalf("unexpected content type %q", resp.Header().Get("Content-Type"))
	}
}
