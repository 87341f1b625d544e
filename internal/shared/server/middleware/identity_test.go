package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIdentityAllowsOptionsWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Identity())
	router.OPTIONS("/api/v1/analyze", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestIdentityResolvesUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
		wantAnon   bool
	}{
		{name: "guest", header: "abc-123", wantStatus: http.StatusOK, wantUser: "guest:abc-123"},
		{name: "anonymous", header: "", wantStatus: http.StatusOK, wantUser: AnonymousUserID, wantAnon: true},
		{name: "malformed", header: "bad id!", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(Identity())
			var gotUser string
			var gotAnon bool
			router.GET("/who", func(c *gin.Context) {
				gotUser = UserIDFromContext(c)
				gotAnon = IsAnonymous(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.header != "" {
				req.Header.Set("X-Guest-Id", tt.header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if gotUser != tt.wantUser {
				t.Fatalf("expected user %q, got %q", tt.wantUser, gotUser)
			}
			if gotAnon != tt.wantAnon {
				t.Fatalf("expected anonymous=%v, got %v", tt.wantAnon, gotAnon)
			}
		})
	}
}
