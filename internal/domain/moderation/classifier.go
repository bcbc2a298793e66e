package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultModerationModel = "omni-moderation-latest"
	defaultStageTimeout    = 6 * time.Second
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
)

// ClassifierConfig configures the external moderation classifier stage.
type ClassifierConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Classifier is the second stage: the OpenAI moderation endpoint. It
// returns a boolean flag with per-category booleans but no graded severity,
// so every flag from this stage reports SeverityHigh.
type Classifier struct {
	client *resty.Client
	model  string
}

// NewClassifier creates the classifier stage.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModerationModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultStageTimeout
	}

	return &Classifier{
		client: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetAuthToken(cfg.APIKey).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		model: cfg.Model,
	}
}

func (c *Classifier) Source() Source {
	return SourceClassifier
}

type moderationRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type moderationResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

func (c *Classifier) Detect(ctx context.Context, sub Submission) (Outcome, error) {
	var out moderationResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(moderationRequest{Input: sub.Content, Model: c.model}).
		SetResult(&out).
		Post("/moderations")
	if err != nil {
		return Outcome{}, err
	}
	if resp.IsError() {
		return Outcome{}, fmt.Errorf("moderation endpoint: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Results) == 0 {
		return Outcome{}, errors.New("moderation endpoint: empty results")
	}

	result := out.Results[0]
	if !result.Flagged {
		return clearOutcome(), nil
	}

	categories := make([]string, 0, len(result.Categories))
	for name, hit := range result.Categories {
		if hit {
			categories = append(categories, name)
		}
	}
	sort.Strings(categories)

	return Outcome{
		Flagged:    true,
		Severity:   SeverityHigh,
		Reason:     "OpenAI moderation flagged for: " + strings.Join(categories, ", "),
		Categories: categories,
		Source:     SourceClassifier,
	}, nil
}
