package analyses

import (
	"context"

	"github.com/gin-gonic/gin"

	"markupcheck-backend/internal/shared/server/middleware"
)

type requestIDKey struct{}

// WithRequestID attaches a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestContext carries the middleware request ID into service calls.
func requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

// detach keeps ctx's values but not its cancellation, so background
// processing outlives the request that started it.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// statusFields are the common log fields for a status transition.
func statusFields(ctx context.Context, a Analysis, status, transition string) map[string]any {
	fields := map[string]any{
		"analysis_id":       a.ID,
		"status":            status,
		"status_transition": transition,
	}
	if id := requestIDFromContext(ctx); id != "" {
		fields["request_id"] = id
	}
	if a.UserID != "" {
		fields["user_id"] = a.UserID
	}
	if a.SourceKind != "" {
		fields["source_kind"] = a.SourceKind
	}
	return fields
}
