package moderation

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Detector is one stage of the moderation cascade. Stages are tried in
// priority order and the first flag wins.
type Detector interface {
	// Source identifies the stage in verdicts and audit records.
	Source() Source
	// Detect evaluates one submission. A clear outcome has Flagged=false,
	// SeverityLow and no categories.
	Detect(ctx context.Context, sub Submission) (Outcome, error)
}

// FailOpen wraps a remote detector so that any failure, timeout included,
// reads as a clear outcome. A moderation-provider outage must not block
// content submission; the pipeline proceeds to the next stage instead.
func FailOpen(d Detector) Detector {
	return &failOpenDetector{next: d}
}

type failOpenDetector struct {
	next Detector
}

func (f *failOpenDetector) Source() Source {
	return f.next.Source()
}

func (f *failOpenDetector) Detect(ctx context.Context, sub Submission) (Outcome, error) {
	out, err := f.next.Detect(ctx, sub)
	if err != nil {
		log.Error().
			Err(err).
			Str("stage", string(f.next.Source())).
			Msg("Detection stage failed, treating as clear")
		return clearOutcome(), nil
	}
	return out, nil
}
