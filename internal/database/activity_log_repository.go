package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/news-guard/newsguard/internal/models"
)

// ActivityLogRepository persists completed analyses. It is the logging sink:
// callers treat every write as fire-and-forget.
type ActivityLogRepository struct {
	db *DB
}

// NewActivityLogRepository creates a new ActivityLogRepository
func NewActivityLogRepository(db *DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Create inserts an analysis log entry
func (r *ActivityLogRepository) Create(ctx context.Context, entry *models.AnalysisLog) error {
	query := `
		INSERT INTO activity_log (
			id, user_id, analysis_type, input_data, result_label,
			result_confidence, result_all_scores, result_references, extracted_text, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.AnalysisType, entry.InputData, entry.ResultLabel,
		entry.ResultConfidence, entry.ResultAllScores, entry.ResultReferences, entry.ExtractedText, entry.CreatedAt,
	)
	return err
}

// ListByUser retrieves log entries for a user, newest first, with cursor pagination
func (r *ActivityLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.AnalysisLog, error) {
	query := `
		SELECT id, user_id, analysis_type, input_data, result_label,
			result_confidence, result_all_scores, result_references, extracted_text, created_at
		FROM activity_log
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity log: %w", err)
	}
	defer rows.Close()

	var entries []*models.AnalysisLog
	for rows.Next() {
		entry := &models.AnalysisLog{}
		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.AnalysisType, &entry.InputData, &entry.ResultLabel,
			&entry.ResultConfidence, &entry.ResultAllScores, &entry.ResultReferences, &entry.ExtractedText, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
