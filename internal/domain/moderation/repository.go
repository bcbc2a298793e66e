package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository persists moderation audit records and reports
type Repository interface {
	// Audit log (append-only)
	CreateLogEntry(ctx context.Context, entry *LogEntry) error
	ListLogEntries(ctx context.Context, filter *ListLogsFilter) ([]*LogEntry, error)
	CountLogEntries(ctx context.Context, filter *ListLogsFilter) (int, error)

	// Reports
	CreateReport(ctx context.Context, report *Report) error
	GetReportByID(ctx context.Context, id uuid.UUID) (*Report, error)
	ListReports(ctx context.Context, filter *ListReportsFilter) ([]*Report, error)
	CountReports(ctx context.Context, filter *ListReportsFilter) (int, error)
	UpdateReportStatus(ctx context.Context, id uuid.UUID, status ReportStatus, adminNotes string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates new moderation repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Audit log operations

func (r *repository) CreateLogEntry(ctx context.Context, entry *LogEntry) error {
	query := `
		INSERT INTO moderation_logs (
			id, content_id, content_type, content_preview, flagged_by,
			severity, reason, categories, action_taken, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ContentID,
		entry.ContentType,
		entry.ContentPreview,
		entry.FlaggedBy,
		entry.Severity,
		entry.Reason,
		entry.Categories,
		entry.ActionTaken,
		entry.CreatedAt,
	)
	return err
}

func (r *repository) ListLogEntries(ctx context.Context, filter *ListLogsFilter) ([]*LogEntry, error) {
	query := `SELECT * FROM moderation_logs WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter != nil && filter.ContentType != "" {
		query += fmt.Sprintf(` AND content_type = $%d`, argPos)
		args = append(args, filter.ContentType)
		argPos++
	}

	query += ` ORDER BY created_at DESC`

	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argPos)
		args = append(args, filter.Limit)
		argPos++
	}
	if filter != nil && filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argPos)
		args = append(args, filter.Offset)
	}

	var entries []*LogEntry
	err := r.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

func (r *repository) CountLogEntries(ctx context.Context, filter *ListLogsFilter) (int, error) {
	query := `SELECT COUNT(*) FROM moderation_logs WHERE 1=1`
	args := []interface{}{}

	if filter != nil && filter.ContentType != "" {
		query += ` AND content_type = $1`
		args = append(args, filter.ContentType)
	}

	var count int
	err := r.db.GetContext(ctx, &count, query, args...)
	return count, err
}

// Report operations

func (r *repository) CreateReport(ctx context.Context, report *Report) error {
	query := `
		INSERT INTO moderation_reports (
			id, reported_by_user_id, reported_user_id, content_type, content_preview,
			report_reason, description, status, ai_flagged, flagged_content,
			severity, post_id, comment_id, message_id, room_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.ReportedByUserID,
		report.ReportedUserID,
		report.ContentType,
		report.ContentPreview,
		report.ReportReason,
		report.Description,
		report.Status,
		report.AIFlagged,
		report.FlaggedContent,
		report.Severity,
		report.PostID,
		report.CommentID,
		report.MessageID,
		report.RoomID,
		report.CreatedAt,
	)
	return err
}

func (r *repository) GetReportByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	query := `SELECT * FROM moderation_reports WHERE id = $1`
	var report Report
	err := r.db.GetContext(ctx, &report, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

func (r *repository) ListReports(ctx context.Context, filter *ListReportsFilter) ([]*Report, error) {
	query := `SELECT * FROM moderation_reports WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter != nil {
		if filter.Status != "" {
			query += fmt.Sprintf(` AND status = $%d`, argPos)
			args = append(args, filter.Status)
			argPos++
		}

		query += ` ORDER BY created_at DESC`

		if filter.Limit > 0 {
			query += fmt.Sprintf(` LIMIT $%d`, argPos)
			args = append(args, filter.Limit)
			argPos++
		}

		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argPos)
			args = append(args, filter.Offset)
		}
	} else {
		query += ` ORDER BY created_at DESC LIMIT 50`
	}

	var reports []*Report
	err := r.db.SelectContext(ctx, &reports, query, args...)
	return reports, err
}

func (r *repository) CountReports(ctx context.Context, filter *ListReportsFilter) (int, error) {
	query := `SELECT COUNT(*) FROM moderation_reports WHERE 1=1`
	args := []interface{}{}

	if filter != nil && filter.Status != "" {
		query += ` AND status = $1`
		args = append(args, filter.Status)
	}

	var count int
	err := r.db.GetContext(ctx, &count, query, args...)
	return count, err
}

func (r *repository) UpdateReportStatus(ctx context.Context, id uuid.UUID, status ReportStatus, adminNotes string) error {
	var resolvedAt sql.NullTime
	if status == ReportStatusResolved || status == ReportStatusDismissed {
		resolvedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}

	query := `
		UPDATE moderation_reports
		SET status = $1, admin_notes = $2, resolved_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, adminNotes, resolvedAt, id)
	return err
}
