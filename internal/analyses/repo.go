package analyses

import (
	"context"
	"time"

	"markupcheck-backend/internal/markup"
)

// StatusUpdate carries the fields changed by a status transition. Nil fields
// are left untouched.
type StatusUpdate struct {
	Status       string
	Report       *markup.Report
	ErrorCode    *string
	ErrorMessage *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	UpdateStatus(ctx context.Context, analysisID string, update StatusUpdate) error
	UpdateSourceKey(ctx context.Context, analysisID, key string) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
}
