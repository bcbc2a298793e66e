package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const defaultAnalysisModel = "gpt-4o-mini"

const analyzerSystemPrompt = `You are a content moderator for a mental health peer support platform. Analyze the submitted content for:
1. Encouragement or glorification of self-harm or suicide (be extremely strict about this)
2. Harassment or bullying
3. Hate speech
4. Spam or manipulative content
5. Dangerous misinformation about mental health treatment

Respond with strict JSON only, in this exact shape:
{"flagged": boolean, "severity": "low"|"medium"|"high"|"critical", "reason": "short explanation", "categories": ["category"]}`

// AnalyzerConfig configures the contextual language-model stage.
type AnalyzerConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Analyzer is the third stage: a chat-completion call that judges content
// in context against the platform's moderation policy. Unlike the earlier
// stages it adopts the model-chosen severity.
type Analyzer struct {
	client *resty.Client
	model  string
}

// NewAnalyzer creates the contextual analyzer stage.
func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultAnalysisModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultStageTimeout
	}

	return &Analyzer{
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetAuthToken(cfg.APIKey).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		model: cfg.Model,
	}
}

func (a *Analyzer) Source() Source {
	return SourceContextual
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// analysisResult is the structured object the model is instructed to emit.
type analysisResult struct {
	Flagged    bool     `json:"flagged"`
	Severity   string   `json:"severity"`
	Reason     string   `json:"reason"`
	Categories []string `json:"categories"`
}

func (a *Analyzer) Detect(ctx context.Context, sub Submission) (Outcome, error) {
	body := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: analyzerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Content type: %s\n\nContent:\n%s", sub.ContentType, sub.Content)},
		},
		Temperature: 0,
	}
	body.ResponseFormat.Type = "json_object"

	var out chatResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return Outcome{}, err
	}
	if resp.IsError() {
		return Outcome{}, fmt.Errorf("chat completions: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 {
		return Outcome{}, errors.New("chat completions: empty choices")
	}

	content := stripCodeFences(out.Choices[0].Message.Content)

	var result analysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// Malformed structured output defaults to non-flagging.
		log.Error().
			Err(err).
			Str("stage", string(SourceContextual)).
			Msg("Contextual analysis returned malformed JSON, treating as clear")
		return clearOutcome(), nil
	}

	if !result.Flagged {
		return clearOutcome(), nil
	}

	severity := Severity(result.Severity)
	if !severity.Valid() {
		severity = SeverityMedium
	}

	reason := result.Reason
	if reason == "" {
		reason = "Flagged by contextual analysis"
	}

	return Outcome{
		Flagged:    true,
		Severity:   severity,
		Reason:     reason,
		Categories: result.Categories,
		Source:     SourceContextual,
	}, nil
}

// stripCodeFences removes a markdown fence some models wrap around JSON
// even when asked for a bare object.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
