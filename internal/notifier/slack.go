package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/skillpiler/internal/model"
)

// topLanguages is how many languages a notification lists.
const topLanguages = 5

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// SlackNotifier posts analysis summaries to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
	sleep      func(time.Duration)
}

// NewSlackNotifier returns a notifier that posts each result to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Notify sends the result as one Block Kit message. A 429 is retried once
// after the Retry-After delay.
func (s *SlackNotifier) Notify(result model.AnalysisResult) error {
	body, err := json.Marshal(buildPayload(result))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		s.sleep(time.Duration(secs) * time.Second)

		resp2, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		s.logger.Info("slack message sent", "username", result.Username, "retried", true)
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	s.logger.Info("slack message sent", "username", result.Username)
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

// SendTestMessage sends a sample result to verify the integration works.
func SendTestMessage(n model.Notifier) error {
	return n.Notify(model.AnalysisResult{
		Username:     "skillpiler-test",
		AnalysisDate: time.Now(),
		Languages: []model.LanguageIntensity{
			{Language: "Go", Intensity: 100, CommitCount: 120, LineCount: 8000, RepositoryCount: 4},
			{Language: "TypeScript", Intensity: 62.5, CommitCount: 45, LineCount: 3100, RepositoryCount: 2},
		},
		TotalRepositories:    5,
		TotalCommits:         150,
		AnalysisPeriodMonths: 12,
	})
}

// intensityBar renders 0-100 as ten block characters.
func intensityBar(v float64) string {
	filled := int(v/10 + 0.5)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func buildPayload(r model.AnalysisResult) slackPayload {
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "📊 Skill profile: " + r.Username},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Repositories:*\n%d", r.TotalRepositories)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Commits:*\n%d", r.TotalCommits)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Languages:*\n%d", len(r.Languages))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Period:*\n%d months", r.AnalysisPeriodMonths)},
			},
		},
	}

	if len(r.Languages) > 0 {
		var lines []string
		for i, l := range r.Languages {
			if i >= topLanguages {
				break
			}
			lines = append(lines, fmt.Sprintf("`%s` *%s* %.1f", intensityBar(l.Intensity), l.Language, l.Intensity))
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: strings.Join(lines, "\n")},
		})
	} else {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "_No language activity found._"},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "View on GitHub"},
					URL:   "https://github.com/" + r.Username,
					Style: "primary",
				},
			},
		},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Blocks: blocks}
}
