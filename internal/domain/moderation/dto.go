package moderation

import "github.com/google/uuid"

// EvaluateRequest mirrors the payload sent by post/comment/chat submission
// handlers. Identifier fields are opaque UUID strings; unparsable values
// persist as NULL rather than failing the evaluation.
type EvaluateRequest struct {
	Content     string `json:"content"`
	UserID      string `json:"userId,omitempty"`
	ContentType string `json:"contentType,omitempty" validate:"omitempty,content_type"`
	ContentID   string `json:"contentId,omitempty"`
	RoomID      string `json:"roomId,omitempty"`
}

// Submission converts the wire request into a pipeline submission.
// Content type defaults to post when the caller omits it.
func (r *EvaluateRequest) Submission() Submission {
	contentType := ContentType(r.ContentType)
	if contentType == "" {
		contentType = ContentTypePost
	}

	return Submission{
		Content:     r.Content,
		ContentType: contentType,
		ContentID:   parseNullUUID(r.ContentID),
		UserID:      parseNullUUID(r.UserID),
		RoomID:      parseNullUUID(r.RoomID),
	}
}

func parseNullUUID(s string) uuid.NullUUID {
	if s == "" {
		return uuid.NullUUID{}
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: id, Valid: true}
}

// VerdictResponse is the flat wire shape returned to submission handlers.
type VerdictResponse struct {
	Flagged          bool     `json:"flagged"`
	Severity         string   `json:"severity"`
	Reason           string   `json:"reason"`
	Categories       []string `json:"categories"`
	FlaggedBy        string   `json:"flagged_by"`
	OpenAIFlagged    bool     `json:"openai_flagged"`
	GPTFlagged       bool     `json:"gpt_flagged"`
	PrimaryDetection bool     `json:"primary_detection"`
}

// NewVerdictResponse maps a verdict onto the wire shape.
func NewVerdictResponse(v Verdict) VerdictResponse {
	categories := v.Categories
	if categories == nil {
		categories = []string{}
	}
	return VerdictResponse{
		Flagged:          v.Flagged,
		Severity:         string(v.Severity),
		Reason:           v.Reason,
		Categories:       categories,
		FlaggedBy:        string(v.Source),
		OpenAIFlagged:    v.ClassifierFlagged,
		GPTFlagged:       v.ContextualFlagged,
		PrimaryDetection: v.PrimaryFlagged,
	}
}

// EvaluateError is the flat error shape for the evaluate endpoint. Flagged
// is always false: a rejected or failed evaluation never claims a flag.
type EvaluateError struct {
	Error   string `json:"error"`
	Flagged bool   `json:"flagged"`
}

// ResolveReportRequest represents admin action on a report
type ResolveReportRequest struct {
	Action string `json:"action" validate:"required,oneof=resolve dismiss"`
	Notes  string `json:"notes,omitempty" validate:"max=1000"`
}

// ListReportsFilter for filtering reports in the review surface
type ListReportsFilter struct {
	Status ReportStatus `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// ListLogsFilter for filtering audit log reads
type ListLogsFilter struct {
	ContentType ContentType `json:"content_type,omitempty"`
	Limit       int         `json:"limit,omitempty"`
	Offset      int         `json:"offset,omitempty"`
}
