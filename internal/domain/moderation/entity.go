package moderation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ContentType identifies which kind of user content is being evaluated
type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeComment ContentType = "comment"
	ContentTypeChat    ContentType = "chat_message"
)

// Severity grades how harmful flagged content is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Source identifies which detection stage produced an outcome
type Source string

const (
	SourceNone       Source = "none"
	SourcePrimary    Source = "ai_primary"
	SourceClassifier Source = "openai_moderation"
	SourceContextual Source = "gpt_analysis"
)

// ReportStatus represents the review status of a report
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

// ReportReasonHarmfulContent is the fixed reason on AI-originated reports.
const ReportReasonHarmfulContent = "harmful_content"

// ActionFlagged is the only action the pipeline records in the audit log.
const ActionFlagged = "flagged"

// Submission is one piece of user content handed to the pipeline.
// UserID is null for system-originated content. RoomID is set only for
// chat messages.
type Submission struct {
	Content     string
	ContentType ContentType
	ContentID   uuid.NullUUID
	UserID      uuid.NullUUID
	RoomID      uuid.NullUUID
}

// Outcome is a single detection stage's decision.
// Invariant: Flagged=false implies SeverityLow and no categories.
type Outcome struct {
	Flagged    bool
	Severity   Severity
	Reason     string
	Categories []string
	Source     Source
}

// Verdict is the reconciled pipeline result returned to the caller. The
// per-stage booleans expose raw observability: stages that never ran report
// as not flagged.
type Verdict struct {
	Outcome
	PrimaryFlagged    bool
	ClassifierFlagged bool
	ContextualFlagged bool
}

// LogEntry is the append-only audit record written once per flagged
// submission. Never updated or deleted.
type LogEntry struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	ContentID      uuid.NullUUID  `db:"content_id" json:"content_id,omitempty"`
	ContentType    ContentType    `db:"content_type" json:"content_type"`
	ContentPreview string         `db:"content_preview" json:"content_preview"`
	FlaggedBy      Source         `db:"flagged_by" json:"flagged_by"`
	Severity       Severity       `db:"severity" json:"severity"`
	Reason         string         `db:"reason" json:"reason"`
	Categories     pq.StringArray `db:"categories" json:"categories"`
	ActionTaken    string         `db:"action_taken" json:"action_taken"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// Report is the reviewable moderation report created by the pipeline and
// later resolved or dismissed by an admin. Exactly one of PostID, CommentID,
// MessageID is set, depending on the content type; RoomID accompanies
// MessageID.
type Report struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	ReportedByUserID uuid.UUID      `db:"reported_by_user_id" json:"reported_by_user_id"`
	ReportedUserID   uuid.NullUUID  `db:"reported_user_id" json:"reported_user_id,omitempty"`
	ContentType      ContentType    `db:"content_type" json:"content_type"`
	ContentPreview   string         `db:"content_preview" json:"content_preview"`
	ReportReason     string         `db:"report_reason" json:"report_reason"`
	Description      string         `db:"description" json:"description"`
	Status           ReportStatus   `db:"status" json:"status"`
	AIFlagged        bool           `db:"ai_flagged" json:"ai_flagged"`
	FlaggedContent   string         `db:"flagged_content" json:"flagged_content"`
	Severity         Severity       `db:"severity" json:"severity"`
	PostID           uuid.NullUUID  `db:"post_id" json:"post_id,omitempty"`
	CommentID        uuid.NullUUID  `db:"comment_id" json:"comment_id,omitempty"`
	MessageID        uuid.NullUUID  `db:"message_id" json:"message_id,omitempty"`
	RoomID           uuid.NullUUID  `db:"room_id" json:"room_id,omitempty"`
	AdminNotes       sql.NullString `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	ResolvedAt       sql.NullTime   `db:"resolved_at" json:"resolved_at,omitempty"`
}

// clearOutcome is what a stage reports when it found nothing.
func clearOutcome() Outcome {
	return Outcome{
		Flagged:  false,
		Severity: SeverityLow,
		Source:   SourceNone,
	}
}

// clearVerdictOutcome is the authoritative outcome when no stage flagged.
func clearVerdictOutcome() Outcome {
	return Outcome{
		Flagged:  false,
		Severity: SeverityLow,
		Reason:   "Content appears safe",
		Source:   SourceNone,
	}
}

// preview truncates content for persisted previews without splitting a rune.
func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
