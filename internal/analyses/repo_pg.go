package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"markupcheck-backend/internal/markup"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, user_id, source_kind, source_url, source_key, status, report,
       error_code, error_message, started_at, completed_at, created_at, updated_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, user_id, source_kind, source_url, source_key, status, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	updatedAt := analysis.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = analysis.CreatedAt
	}
	_, err := r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.UserID,
		analysis.SourceKind,
		nullString(analysis.SourceURL),
		nullString(analysis.SourceKey),
		analysis.Status,
		analysis.CreatedAt,
		updatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := `
SELECT ` + analysisColumns + `
FROM analyses
WHERE id = $1
LIMIT 1`
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return a, nil
}

// UpdateStatus applies a status transition. The report summary columns are
// refreshed whenever a report is written.
func (r *PGRepo) UpdateStatus(ctx context.Context, analysisID string, update StatusUpdate) error {
	const query = `
UPDATE analyses
SET status = $1,
    report = COALESCE($2::jsonb, report),
    framework = COALESCE($3::text, framework),
    error_count = COALESCE($4::integer, error_count),
    warning_count = COALESCE($5::integer, warning_count),
    error_code = COALESCE($6::text, error_code),
    error_message = COALESCE($7::text, error_message),
    started_at = CASE
        WHEN $8::timestamptz IS NOT NULL THEN $8::timestamptz
        WHEN $1 = 'processing' AND started_at IS NULL THEN now()
        ELSE started_at
    END,
    completed_at = CASE
        WHEN $9::timestamptz IS NOT NULL THEN $9::timestamptz
        WHEN ($1 = 'completed' OR $1 = 'failed') AND completed_at IS NULL THEN now()
        ELSE completed_at
    END,
    updated_at = now()
WHERE id = $10::uuid`

	var (
		payload    any
		framework  any
		errorCount any
		warnCount  any
	)
	if update.Report != nil {
		raw, err := json.Marshal(update.Report)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		payload = raw
		framework = nullString(update.Report.Framework)
		errorCount = update.Report.Summary.Errors
		warnCount = update.Report.Summary.Warnings
	}

	res, err := r.DB.ExecContext(ctx, query,
		update.Status,
		payload,
		framework,
		errorCount,
		warnCount,
		update.ErrorCode,
		update.ErrorMessage,
		update.StartedAt,
		update.CompletedAt,
		analysisID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSourceKey records where the analysed source was stored.
func (r *PGRepo) UpdateSourceKey(ctx context.Context, analysisID, key string) error {
	const query = `
UPDATE analyses
SET source_key = $1,
    updated_at = now()
WHERE id = $2::uuid`

	res, err := r.DB.ExecContext(ctx, query, key, analysisID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser lists analyses for a user ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	limit, offset = clampPage(limit, offset)

	query := `
SELECT ` + analysisColumns + `
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var sourceURL sql.NullString
	var sourceKey sql.NullString
	var report sql.NullString
	var errorCode sql.NullString
	var errorMessage sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.SourceKind,
		&sourceURL,
		&sourceKey,
		&a.Status,
		&report,
		&errorCode,
		&errorMessage,
		&startedAt,
		&completedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Analysis{}, err
	}
	a.SourceURL = sourceURL.String
	a.SourceKey = sourceKey.String
	a.ErrorCode = errorCode.String
	if report.Valid && report.String != "" {
		var parsed markup.Report
		if err := json.Unmarshal([]byte(report.String), &parsed); err == nil {
			a.Report = &parsed
		}
	}
	if errorMessage.Valid {
		a.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
