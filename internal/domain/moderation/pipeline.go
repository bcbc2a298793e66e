package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Pipeline runs the detection cascade for one submission at a time and owns
// its two persisted side effects: the audit log entry and the reviewable
// report. Stages run strictly in order and the first flag wins; remote
// stages are skipped entirely once an earlier stage has flagged.
type Pipeline struct {
	stages     []Detector
	repo       Repository
	cache      VerdictCache
	reporterID uuid.UUID
}

// NewPipeline wires the cascade in priority order. The deterministic phrase
// scan always outranks the probabilistic stages: it is cheap, auditable and
// its matches are never explained away by a softer classifier disagreeing.
// Remote stages should be passed through FailOpen by the caller.
func NewPipeline(repo Repository, reporterID uuid.UUID, cache VerdictCache, stages ...Detector) *Pipeline {
	return &Pipeline{
		stages:     stages,
		repo:       repo,
		cache:      cache,
		reporterID: reporterID,
	}
}

// Evaluate runs the cascade and reconciles a verdict. The only errors it
// returns are ErrContentRequired and internal faults; the handler converts
// the latter into the non-flagging service-error response. Persistence
// failures never surface here.
func (p *Pipeline) Evaluate(ctx context.Context, sub Submission) (verdict Verdict, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			verdict = Verdict{}
			err = fmt.Errorf("moderation pipeline panic: %v", rec)
		}
	}()

	if strings.TrimSpace(sub.Content) == "" {
		return Verdict{}, ErrContentRequired
	}

	verdict = Verdict{Outcome: clearVerdictOutcome()}

	var (
		outcomes []Outcome
		logged   bool
	)

	for i, stage := range p.stages {
		// The remote stages are skippable for content that cleared the
		// full cascade recently. The phrase scan above never is.
		if i == 1 && p.cache != nil && p.cache.SeenClean(ctx, sub.Content) {
			log.Debug().Msg("Verdict cache hit, skipping remote stages")
			return verdict, nil
		}

		out, detectErr := stage.Detect(ctx, sub)
		if detectErr != nil {
			return Verdict{}, detectErr
		}

		recordStageFlag(&verdict, stage.Source(), out.Flagged)
		outcomes = append(outcomes, out)

		if out.Flagged {
			// A deterministic finding is persisted immediately so a fault
			// further down cannot lose it.
			if stage.Source() == SourcePrimary {
				p.persistLog(ctx, sub, out)
				logged = true
			}
			break
		}
	}

	authoritative := reconcile(outcomes)
	verdict.Outcome = authoritative

	if authoritative.Flagged {
		if !logged {
			p.persistLog(ctx, sub, authoritative)
		}
		p.persistReport(ctx, sub, authoritative)
		return verdict, nil
	}

	if p.cache != nil {
		p.cache.MarkClean(ctx, sub.Content)
	}
	return verdict, nil
}

// reconcile picks the first flagged outcome in stage priority order.
// Skipped stages are absent from the slice and count as clear.
func reconcile(outcomes []Outcome) Outcome {
	for _, out := range outcomes {
		if out.Flagged {
			return out
		}
	}
	return clearVerdictOutcome()
}

func recordStageFlag(v *Verdict, source Source, flagged bool) {
	switch source {
	case SourcePrimary:
		v.PrimaryFlagged = flagged
	case SourceClassifier:
		v.ClassifierFlagged = flagged
	case SourceContextual:
		v.ContextualFlagged = flagged
	}
}

// persistLog writes the audit record for a flagged submission. A write
// failure is logged and swallowed: moderation must not be defeated by an
// unrelated persistence fault.
func (p *Pipeline) persistLog(ctx context.Context, sub Submission, out Outcome) {
	entry := &LogEntry{
		ID:             uuid.New(),
		ContentID:      sub.ContentID,
		ContentType:    sub.ContentType,
		ContentPreview: preview(sub.Content, 100),
		FlaggedBy:      out.Source,
		Severity:       out.Severity,
		Reason:         out.Reason,
		Categories:     pq.StringArray(out.Categories),
		ActionTaken:    ActionFlagged,
		CreatedAt:      time.Now(),
	}

	if err := p.repo.CreateLogEntry(ctx, entry); err != nil {
		log.Error().
			Err(err).
			Str("content_type", string(sub.ContentType)).
			Str("flagged_by", string(out.Source)).
			Msg("Failed to persist moderation log entry")
	}
}

// persistReport files the reviewable report under the fixed system reporter
// identity, mapping the content type to the matching foreign-key column.
// Same swallow-and-log policy as persistLog.
func (p *Pipeline) persistReport(ctx context.Context, sub Submission, out Outcome) {
	report := &Report{
		ID:               uuid.New(),
		ReportedByUserID: p.reporterID,
		ReportedUserID:   sub.UserID,
		ContentType:      sub.ContentType,
		ContentPreview:   preview(sub.Content, 200),
		ReportReason:     ReportReasonHarmfulContent,
		Description: fmt.Sprintf("AI moderation flagged this %s. Reason: %s. Severity: %s. Detected by: %s.",
			sub.ContentType, out.Reason, out.Severity, out.Source),
		Status:         ReportStatusPending,
		AIFlagged:      true,
		FlaggedContent: sub.Content,
		Severity:       out.Severity,
		CreatedAt:      time.Now(),
	}

	switch sub.ContentType {
	case ContentTypePost:
		report.PostID = sub.ContentID
	case ContentTypeComment:
		report.CommentID = sub.ContentID
	case ContentTypeChat:
		report.MessageID = sub.ContentID
		report.RoomID = sub.RoomID
	}

	if err := p.repo.CreateReport(ctx, report); err != nil {
		log.Error().
			Err(err).
			Str("content_type", string(sub.ContentType)).
			Str("severity", string(out.Severity)).
			Msg("Failed to persist moderation report")
	}
}
