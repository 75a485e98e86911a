package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SlackChannel delivers alerts to a Slack incoming webhook as Block Kit
// messages. The destination is the webhook URL from the notification
// settings row.
type SlackChannel struct {
	client *http.Client
}

// NewSlackChannel creates a SlackChannel with a bounded HTTP client.
func NewSlackChannel() *SlackChannel {
	return &SlackChannel{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the channel in logs and metrics.
func (s *SlackChannel) Name() string { return "slack" }

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string       `json:"type"`
	Text     *slackText   `json:"text,omitempty"`
	Fields   []slackText  `json:"fields,omitempty"`
	Elements []slackelems `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackelems struct {
	Type string    `json:"type"`
	Text slackText `json:"text"`
	URL  string    `json:"url"`
}

// Send POSTs the rendered content to the webhook. Any non-200 response is
// an error carrying the status and body for correlation.
func (s *SlackChannel) Send(ctx context.Context, c Content, destination string) error {
	payload := slackPayload{Blocks: []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "🔍 " + alertHeader + "!"},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Source:*\n%s (%s)", c.SourceName, titleCase(string(c.SourceType)))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Matched Keyword:*\n%s", c.Keyword)},
			},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Post Content:*\n```%s```", c.Excerpt)},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Author:*\n%s", c.Author)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Date:*\n%s", c.PostedAt)},
			},
		},
		{
			Type: "actions",
			Elements: []slackelems{
				{
					Type: "button",
					Text: slackText{Type: "plain_text", Text: "View Original Post"},
					URL:  c.PostURL,
				},
			},
		},
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
