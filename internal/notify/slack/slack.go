// Package slack delivers triage pass digests to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/aegis/internal/triage"
)

const (
	maxDigestLen = 3000
	httpTimeout  = 10 * time.Second
)

// Notifier posts pass digests to a Slack webhook. It implements
// triage.Notifier.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a
// no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Notify posts a pass result to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, pr *triage.PassResult) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(pr)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "pass digest posted to slack",
		"pass_id", pr.ID,
		"actions", len(pr.Actions),
	)
	return nil
}

func buildMessage(pr *triage.PassResult) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(pr),
			{"type": "divider"},
			fieldsBlock(pr),
			{"type": "divider"},
			digestBlock(pr),
			{"type": "divider"},
			contextBlock(pr),
		},
	}
}

func headerBlock(pr *triage.PassResult) map[string]any {
	emoji := urgencyEmoji(pr.Actions)
	text := fmt.Sprintf("%s Triage Pass: %d actions", emoji, len(pr.Actions))

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(pr *triage.PassResult) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Items:* %d", pr.Items),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Changed:* %d", pr.Changed),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Groupings:* %d", len(pr.Groupings)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Actions:* %d", len(pr.Actions)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Skipped:* %d", len(pr.Skipped)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", pr.Duration),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func digestBlock(pr *triage.PassResult) map[string]any {
	text := truncate(pr.Digest, maxDigestLen)
	if text == "" {
		text = "_No digest available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Digest*\n\n%s", text),
		},
	}
}

func contextBlock(pr *triage.PassResult) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("aegis • pass %s • %s", pr.ID, pr.StartedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func urgencyEmoji(actions []triage.ActionRequired) string {
	var high bool
	for _, a := range actions {
		switch a.Priority {
		case triage.ActionPriorityUrgent:
			return "\U0001f534" // red circle
		case triage.ActionPriorityHigh:
			high = true
		}
	}
	if high {
		return "\U0001f7e1" // yellow circle
	}
	return "\U0001f7e2" // green circle
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
