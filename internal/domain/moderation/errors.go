package moderation

import "errors"

var (
	// ErrContentRequired is a caller-contract violation, not a moderation
	// decision: empty content is rejected before any stage runs.
	ErrContentRequired = errors.New("content required")

	// Report review errors
	ErrReportNotFound = errors.New("report not found")
	ErrReportClosed   = errors.New("report already reviewed")
	ErrInvalidAction  = errors.New("invalid review action")
)
