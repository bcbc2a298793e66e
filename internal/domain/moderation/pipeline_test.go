package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type repoStub struct {
	logEntries []*LogEntry
	reports    []*Report

	logErr    error
	reportErr error

	logAttempts    int
	reportAttempts int
}

func (r *repoStub) CreateLogEntry(_ context.Context, entry *LogEntry) error {
	r.logAttempts++
	if r.logErr != nil {
		return r.logErr
	}
	r.logEntries = append(r.logEntries, entry)
	return nil
}

func (r *repoStub) ListLogEntries(context.Context, *ListLogsFilter) ([]*LogEntry, error) {
	return r.logEntries, nil
}

func (r *repoStub) CountLogEntries(context.Context, *ListLogsFilter) (int, error) {
	return len(r.logEntries), nil
}

func (r *repoStub) CreateReport(_ context.Context, report *Report) error {
	r.reportAttempts++
	if r.reportErr != nil {
		return r.reportErr
	}
	r.reports = append(r.reports, report)
	return nil
}

func (r *repoStub) GetReportByID(_ context.Context, id uuid.UUID) (*Report, error) {
	for _, report := range r.reports {
		if report.ID == id {
			return report, nil
		}
	}
	return nil, nil
}

func (r *repoStub) ListReports(context.Context, *ListReportsFilter) ([]*Report, error) {
	return r.reports, nil
}

func (r *repoStub) CountReports(context.Context, *ListReportsFilter) (int, error) {
	return len(r.reports), nil
}

func (r *repoStub) UpdateReportStatus(_ context.Context, id uuid.UUID, status ReportStatus, notes string) error {
	for _, report := range r.reports {
		if report.ID == id {
			report.Status = status
			report.AdminNotes.String = notes
			report.AdminNotes.Valid = notes != ""
		}
	}
	return nil
}

type stubDetector struct {
	source  Source
	outcome Outcome
	err     error
	calls   int
}

func (d *stubDetector) Source() Source { return d.source }

func (d *stubDetector) Detect(context.Context, Submission) (Outcome, error) {
	d.calls++
	if d.err != nil {
		return Outcome{}, d.err
	}
	return d.outcome, nil
}

func clearStub(source Source) *stubDetector {
	return &stubDetector{source: source, outcome: clearOutcome()}
}

func flaggedStub(source Source, severity Severity, reason string) *stubDetector {
	return &stubDetector{source: source, outcome: Outcome{
		Flagged:    true,
		Severity:   severity,
		Reason:     reason,
		Categories: []string{"test_category"},
		Source:     source,
	}}
}

var testReporterID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func newTestPipeline(repo Repository, cache VerdictCache, stages ...Detector) *Pipeline {
	return NewPipeline(repo, testReporterID, cache, stages...)
}

func TestEvaluateCriticalPhraseShortCircuits(t *testing.T) {
	repo := &repoStub{}
	classifier := flaggedStub(SourceClassifier, SeverityHigh, "would also flag")
	analyzer := flaggedStub(SourceContextual, SeverityMedium, "would also flag")

	p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(classifier), FailOpen(analyzer))

	verdict, err := p.Evaluate(context.Background(), Submission{
		Content:     "you should just kill yourself",
		ContentType: ContentTypePost,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if !verdict.Flagged {
		t.Fatal("expected flagged verdict")
	}
	if verdict.Severity != SeverityCritical {
		t.Fatalf("expected critical severity, got %s", verdict.Severity)
	}
	if verdict.Source != SourcePrimary {
		t.Fatalf("expected ai_primary source, got %s", verdict.Source)
	}
	if !containsString(verdict.Categories, "self_harm_encouragement") {
		t.Fatalf("expected self_harm_encouragement category, got %v", verdict.Categories)
	}
	if !verdict.PrimaryFlagged || verdict.ClassifierFlagged || verdict.ContextualFlagged {
		t.Fatalf("unexpected raw flags: %+v", verdict)
	}

	// Short-circuit: the paid stages are never invoked.
	if classifier.calls != 0 || analyzer.calls != 0 {
		t.Fatalf("expected remote stages skipped, got classifier=%d analyzer=%d", classifier.calls, analyzer.calls)
	}
}

func TestEvaluateAllClear(t *testing.T) {
	repo := &repoStub{}
	classifier := clearStub(SourceClassifier)
	analyzer := clearStub(SourceContextual)

	p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(classifier), FailOpen(analyzer))

	verdict, err := p.Evaluate(context.Background(), Submission{
		Content:     "I had a rough day but I'm managing",
		ContentType: ContentTypePost,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if verdict.Flagged {
		t.Fatal("expected clear verdict")
	}
	if verdict.Severity != SeverityLow {
		t.Fatalf("expected low severity, got %s", verdict.Severity)
	}
	if verdict.Reason != "Content appears safe" {
		t.Fatalf("unexpected reason: %s", verdict.Reason)
	}
	if classifier.calls != 1 || analyzer.calls != 1 {
		t.Fatalf("expected both remote stages to run, got classifier=%d analyzer=%d", classifier.calls, analyzer.calls)
	}
	if len(repo.logEntries) != 0 || len(repo.reports) != 0 {
		t.Fatal("clear content must not persist anything")
	}
}

func TestEvaluateClassifierFailureProceedsToAnalyzer(t *testing.T) {
	repo := &repoStub{}
	classifier := &stubDetector{source: SourceClassifier, err: errors.New("connection refused")}
	analyzer := clearStub(SourceContextual)

	p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(classifier), FailOpen(analyzer))

	verdict, err := p.Evaluate(context.Background(), Submission{
		Content:     "a perfectly ordinary message",
		ContentType: ContentTypePost,
	})
	if err != nil {
		t.Fatalf("provider failure must not surface: %v", err)
	}
	if verdict.Flagged {
		t.Fatal("expected clear verdict")
	}
	if analyzer.calls != 1 {
		t.Fatal("expected pipeline to proceed to the contextual stage")
	}
}

func TestEvaluateEmptyContent(t *testing.T) {
	repo := &repoStub{}
	classifier := clearStub(SourceClassifier)
	analyzer := clearStub(SourceContextual)

	p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(classifier), FailOpen(analyzer))

	for _, content := range []string{"", "   \n\t "} {
		_, err := p.Evaluate(context.Background(), Submission{Content: content, ContentType: ContentTypePost})
		if !errors.Is(err, ErrContentRequired) {
			t.Fatalf("expected ErrContentRequired, got %v", err)
		}
	}

	if classifier.calls != 0 || analyzer.calls != 0 {
		t.Fatal("no remote calls may be made for empty content")
	}
	if len(repo.logEntries) != 0 || len(repo.reports) != 0 {
		t.Fatal("nothing may be persisted for empty content")
	}
}

func TestEvaluateClassifierFlagLogsOnce(t *testing.T) {
	repo := &repoStub{}
	classifier := flaggedStub(SourceClassifier, SeverityHigh, "OpenAI moderation flagged for: harassment")
	analyzer := flaggedStub(SourceContextual, SeverityMedium, "would disagree")

	p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(classifier), FailOpen(analyzer))

	verdict, err := p.Evaluate(context.Background(), Submission{
		Content:     "a message the classifier dislikes",
		ContentType: ContentTypeComment,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if verdict.Source != SourceClassifier {
		t.Fatalf("expected openai_moderation source, got %s", verdict.Source)
	}
	if verdict.Severity != SeverityHigh {
		t.Fatalf("expected high severity, got %s", verdict.Severity)
	}
	if verdict.PrimaryFlagged {
		t.Fatal("primary stage did not flag")
	}
	if !verdict.ClassifierFlagged {
		t.Fatal("classifier raw flag must be set")
	}
	if analyzer.calls != 0 {
		t.Fatal("expected contextual stage skipped after classifier flag")
	}

	if len(repo.logEntries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(repo.logEntries))
	}
	if repo.logEntries[0].FlaggedBy != SourceClassifier {
		t.Fatalf("unexpected flagged_by: %s", repo.logEntries[0].FlaggedBy)
	}
	if len(repo.reports) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(repo.reports))
	}
}

func TestEvaluatePrimaryFlagDoesNotDoubleLog(t *testing.T) {
	repo := &repoStub{}

	p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(clearStub(SourceClassifier)), FailOpen(clearStub(SourceContextual)))

	_, err := p.Evaluate(context.Background(), Submission{
		Content:     "go die",
		ContentType: ContentTypePost,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// The primary stage persists its log immediately; the reconciler must
	// not log a second time.
	if repo.logAttempts != 1 {
		t.Fatalf("expected exactly one log write attempt, got %d", repo.logAttempts)
	}
	if len(repo.logEntries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(repo.logEntries))
	}
	if repo.logEntries[0].FlaggedBy != SourcePrimary {
		t.Fatalf("unexpected flagged_by: %s", repo.logEntries[0].FlaggedBy)
	}
	if repo.logEntries[0].ActionTaken != ActionFlagged {
		t.Fatalf("unexpected action: %s", repo.logEntries[0].ActionTaken)
	}
}

func TestEvaluateContextualFlagAdoptsModelSeverity(t *testing.T) {
	repo := &repoStub{}
	analyzer := flaggedStub(SourceContextual, SeverityMedium, "subtle harassment in context")

	p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(clearStub(SourceClassifier)), FailOpen(analyzer))

	verdict, err := p.Evaluate(context.Background(), Submission{
		Content:     "something only context reveals",
		ContentType: ContentTypePost,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if verdict.Source != SourceContextual {
		t.Fatalf("expected gpt_analysis source, got %s", verdict.Source)
	}
	if verdict.Severity != SeverityMedium {
		t.Fatalf("expected model-chosen severity, got %s", verdict.Severity)
	}
	if !verdict.ContextualFlagged || verdict.PrimaryFlagged || verdict.ClassifierFlagged {
		t.Fatalf("unexpected raw flags: %+v", verdict)
	}
}

func TestEvaluateReportFieldMapping(t *testing.T) {
	contentID := uuid.New()
	roomID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name        string
		contentType ContentType
		roomID      uuid.NullUUID
		check       func(t *testing.T, report *Report)
	}{
		{
			name:        "chat message populates message and room",
			contentType: ContentTypeChat,
			roomID:      uuid.NullUUID{UUID: roomID, Valid: true},
			check: func(t *testing.T, report *Report) {
				if !report.MessageID.Valid || report.MessageID.UUID != contentID {
					t.Fatalf("expected message_id %s, got %+v", contentID, report.MessageID)
				}
				if !report.RoomID.Valid || report.RoomID.UUID != roomID {
					t.Fatalf("expected room_id %s, got %+v", roomID, report.RoomID)
				}
				if report.PostID.Valid || report.CommentID.Valid {
					t.Fatal("post_id and comment_id must be absent for chat messages")
				}
			},
		},
		{
			name:        "post populates post only",
			contentType: ContentTypePost,
			check: func(t *testing.T, report *Report) {
				if !report.PostID.Valid || report.PostID.UUID != contentID {
					t.Fatalf("expected post_id %s, got %+v", contentID, report.PostID)
				}
				if report.CommentID.Valid || report.MessageID.Valid || report.RoomID.Valid {
					t.Fatal("only post_id may be set for posts")
				}
			},
		},
		{
			name:        "comment populates comment only",
			contentType: ContentTypeComment,
			check: func(t *testing.T, report *Report) {
				if !report.CommentID.Valid || report.CommentID.UUID != contentID {
					t.Fatalf("expected comment_id %s, got %+v", contentID, report.CommentID)
				}
				if report.PostID.Valid || report.MessageID.Valid {
					t.Fatal("only comment_id may be set for comments")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &repoStub{}
			p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(clearStub(SourceClassifier)), FailOpen(clearStub(SourceContextual)))

			_, err := p.Evaluate(context.Background(), Submission{
				Content:     "end your life",
				ContentType: tt.contentType,
				ContentID:   uuid.NullUUID{UUID: contentID, Valid: true},
				UserID:      uuid.NullUUID{UUID: userID, Valid: true},
				RoomID:      tt.roomID,
			})
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}

			if len(repo.reports) != 1 {
				t.Fatalf("expected one report, got %d", len(repo.reports))
			}
			report := repo.reports[0]

			if report.ReportedByUserID != testReporterID {
				t.Fatalf("expected system reporter identity, got %s", report.ReportedByUserID)
			}
			if report.ReportReason != ReportReasonHarmfulContent {
				t.Fatalf("unexpected report reason: %s", report.ReportReason)
			}
			if report.Status != ReportStatusPending {
				t.Fatalf("expected pending status, got %s", report.Status)
			}
			if !report.AIFlagged {
				t.Fatal("expected ai_flagged true")
			}
			if report.FlaggedContent != "end your life" {
				t.Fatalf("expected full original text, got %q", report.FlaggedContent)
			}
			tt.check(t, report)
		})
	}
}

func TestEvaluatePersistenceFailureDoesNotAffectVerdict(t *testing.T) {
	repo := &repoStub{
		logErr:    errors.New("log store down"),
		reportErr: errors.New("report store down"),
	}
	classifier := flaggedStub(SourceClassifier, SeverityHigh, "flagged")

	p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(classifier), FailOpen(clearStub(SourceContextual)))

	verdict, err := p.Evaluate(context.Background(), Submission{
		Content:     "a message the classifier dislikes",
		ContentType: ContentTypePost,
	})
	if err != nil {
		t.Fatalf("persistence faults must not surface: %v", err)
	}
	if !verdict.Flagged || verdict.Source != SourceClassifier {
		t.Fatalf("verdict must be unaffected, got %+v", verdict)
	}

	// Both writes are attempted independently; the first failing does not
	// stop the second.
	if repo.logAttempts != 1 || repo.reportAttempts != 1 {
		t.Fatalf("expected both writes attempted, got log=%d report=%d", repo.logAttempts, repo.reportAttempts)
	}
}

func TestEvaluateContentPreviews(t *testing.T) {
	repo := &repoStub{}
	long := "go die "
	for len(long) < 300 {
		long += "and some more padding text "
	}

	p := newTestPipeline(repo, nil, NewPhraseDetector(), FailOpen(clearStub(SourceClassifier)), FailOpen(clearStub(SourceContextual)))

	_, err := p.Evaluate(context.Background(), Submission{Content: long, ContentType: ContentTypePost})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if got := len([]rune(repo.logEntries[0].ContentPreview)); got != 100 {
		t.Fatalf("expected 100-char log preview, got %d", got)
	}
	if got := len([]rune(repo.reports[0].ContentPreview)); got != 200 {
		t.Fatalf("expected 200-char report preview, got %d", got)
	}
	if repo.reports[0].FlaggedContent != long {
		t.Fatal("report must keep the full original text")
	}
}

type cacheStub struct {
	seen    bool
	lookups int
	marks   int
}

func (c *cacheStub) SeenClean(context.Context, string) bool {
	c.lookups++
	return c.seen
}

func (c *cacheStub) MarkClean(context.Context, string) {
	c.marks++
}

func TestEvaluateCacheHitSkipsRemoteStages(t *testing.T) {
	repo := &repoStub{}
	cache := &cacheStub{seen: true}
	classifier := flaggedStub(SourceClassifier, SeverityHigh, "would flag")
	analyzer := flaggedStub(SourceContextual, SeverityMedium, "would flag")

	p := newTestPipeline(repo, cache, NewPhraseDetector(), FailOpen(classifier), FailOpen(analyzer))

	verdict, err := p.Evaluate(context.Background(), Submission{
		Content:     "a repeated clean message",
		ContentType: ContentTypePost,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if verdict.Flagged {
		t.Fatal("cache hit must return the clear verdict")
	}
	if classifier.calls != 0 || analyzer.calls != 0 {
		t.Fatal("cache hit must skip remote stages")
	}
}

func TestEvaluateCacheNeverMasksCriticalPhrase(t *testing.T) {
	repo := &repoStub{}
	cache := &cacheStub{seen: true}

	p := newTestPipeline(repo, cache, NewPhraseDetector(), FailOpen(clearStub(SourceClassifier)), FailOpen(clearStub(SourceContextual)))

	verdict, err := p.Evaluate(context.Background(), Submission{
		Content:     "kill yourself",
		ContentType: ContentTypePost,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !verdict.Flagged || verdict.Severity != SeverityCritical {
		t.Fatal("phrase scan must run before any cache lookup")
	}
	if cache.lookups != 0 {
		t.Fatal("cache must not be consulted once the phrase scan flagged")
	}
}

func TestEvaluateCleanRunMarksCache(t *testing.T) {
	repo := &repoStub{}
	cache := &cacheStub{}

	p := newTestPipeline(repo, cache, NewPhraseDetector(), FailOpen(clearStub(SourceClassifier)), FailOpen(clearStub(SourceContextual)))

	_, err := p.Evaluate(context.Background(), Submission{
		Content:     "a calm check-in message",
		ContentType: ContentTypePost,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cache.marks != 1 {
		t.Fatalf("expected one cache mark, got %d", cache.marks)
	}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
