package moderation

import (
	"context"
	"fmt"
	"strings"
)

// criticalPhrases is the curated list of self-harm encouragement and
// incitement phrases, direct and indirect. Matching is unanchored substring
// containment: a phrase inside a longer word still matches. That is a known
// recall-over-precision tradeoff for this safety-critical list.
var criticalPhrases = []string{
	"kill yourself",
	"kill urself",
	"end it all",
	"end your life",
	"you should die",
	"go die",
	"better off dead",
	"world would be better without you",
	"no one would miss you",
	"nobody would miss you",
	"not worth living",
	"just end it",
	"do it already",
	"drink bleach",
	"everyone hates you",
}

// PhraseDetector is the deterministic first stage. It never calls out to a
// remote service and its results are reproducible given the same phrase
// list and input.
type PhraseDetector struct {
	phrases []string
}

// NewPhraseDetector creates the detector over the curated phrase list.
func NewPhraseDetector() *PhraseDetector {
	return &PhraseDetector{phrases: criticalPhrases}
}

func (d *PhraseDetector) Source() Source {
	return SourcePrimary
}

func (d *PhraseDetector) Detect(_ context.Context, sub Submission) (Outcome, error) {
	normalized := strings.ToLower(strings.TrimSpace(sub.Content))

	for _, phrase := range d.phrases {
		if strings.Contains(normalized, phrase) {
			return Outcome{
				Flagged:    true,
				Severity:   SeverityCritical,
				Reason:     fmt.Sprintf("Contains harmful encouragement: %q", phrase),
				Categories: []string{"harmful_content", "self_harm_encouragement"},
				Source:     SourcePrimary,
			}, nil
		}
	}

	return clearOutcome(), nil
}
