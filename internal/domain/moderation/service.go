package moderation

import (
	"context"

	"github.com/google/uuid"
)

// ReviewService backs the review surface over AI reports and the audit log.
// It only ever mutates a report's status, notes and resolution time; the
// pipeline's log entries stay append-only.
type ReviewService struct {
	repo Repository
}

// NewReviewService creates the review service.
func NewReviewService(repo Repository) *ReviewService {
	return &ReviewService{repo: repo}
}

// ListReports returns reports matching the filter.
func (s *ReviewService) ListReports(ctx context.Context, filter *ListReportsFilter) ([]*Report, error) {
	return s.repo.ListReports(ctx, filter)
}

// CountReports returns the total report count for the filter.
func (s *ReviewService) CountReports(ctx context.Context, filter *ListReportsFilter) (int, error) {
	return s.repo.CountReports(ctx, filter)
}

// GetReport returns a single report.
func (s *ReviewService) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	report, err := s.repo.GetReportByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// ResolveReport applies an admin decision to a pending report.
func (s *ReviewService) ResolveReport(ctx context.Context, id uuid.UUID, req *ResolveReportRequest) error {
	report, err := s.repo.GetReportByID(ctx, id)
	if err != nil {
		return err
	}
	if report == nil {
		return ErrReportNotFound
	}
	if report.Status != ReportStatusPending {
		return ErrReportClosed
	}

	var status ReportStatus
	switch req.Action {
	case "resolve":
		status = ReportStatusResolved
	case "dismiss":
		status = ReportStatusDismissed
	default:
		return ErrInvalidAction
	}

	return s.repo.UpdateReportStatus(ctx, id, status, req.Notes)
}

// ListLogEntries returns audit log entries matching the filter.
func (s *ReviewService) ListLogEntries(ctx context.Context, filter *ListLogsFilter) ([]*LogEntry, error) {
	return s.repo.ListLogEntries(ctx, filter)
}

// CountLogEntries returns the total audit log count for the filter.
func (s *ReviewService) CountLogEntries(ctx context.Context, filter *ListLogsFilter) (int, error) {
	return s.repo.CountLogEntries(ctx, filter)
}
