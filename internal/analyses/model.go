package analyses

import (
	"time"

	"markupcheck-backend/internal/markup"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	SourceHTML = "html"
	SourceURL  = "url"
)

// Analysis is a persisted analysis job for one HTML source.
type Analysis struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	SourceKind   string         `json:"sourceKind"`
	SourceURL    string         `json:"sourceUrl,omitempty"`
	SourceKey    string         `json:"-"`
	Status       string         `json:"status"`
	Report       *markup.Report `json:"report,omitempty"`
	ErrorCode    string         `json:"errorCode,omitempty"`
	ErrorMessage *string        `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
}

// Terminal reports whether the analysis will not change status again.
func (a Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// Input is the source submitted for an analysis. Exactly one field is set.
type Input struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}
