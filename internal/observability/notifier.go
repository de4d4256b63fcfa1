package observability

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Notifier sends alert notifications to external channels.
type Notifier interface {
	Notify(ctx context.Context, account string, alerts []Alert) error
}

// webhookNotifier posts alerts as a Slack-compatible block message.
type webhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a Notifier posting to url.
func NewWebhookNotifier(url string) Notifier {
	return &webhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type blockMessage struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

type block struct {
	Type string     `json:"type"`
	Text *blockText `json:"text,omitempty"`
}

type blockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts alerts for account. No request is made when alerts is empty.
func (n *webhookNotifier) Notify(ctx context.Context, account string, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := sonic.Marshal(buildBlockMessage(account, alerts))
	if err != nil {
		return fmt.Errorf("marshalling alert message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func buildBlockMessage(account string, alerts []Alert) blockMessage {
	title := fmt.Sprintf("cdesk: %d alert(s)", len(alerts))
	if account != "" {
		title += " for " + account
	}
	msg := blockMessage{
		Text:   title,
		Blocks: []block{{Type: "header", Text: &blockText{Type: "plain_text", Text: title}}},
	}
	for i, a := range alerts {
		if i > 0 {
			msg.Blocks = append(msg.Blocks, block{Type: "divider"})
		}
		text := fmt.Sprintf("%s *%s* `%s`\n%s\n_%s_",
			severityMark(a.Severity),
			strings.ToUpper(string(a.Severity)),
			a.Condition,
			a.Message,
			a.TriggeredAt.UTC().Format("2006-01-02 15:04 UTC"),
		)
		msg.Blocks = append(msg.Blocks, block{Type: "section", Text: &blockText{Type: "mrkdwn", Text: text}})
	}
	return msg
}

func severityMark(s AlertSeverity) string {
	switch s {
	case SeverityHigh:
		return ":red_circle:"
	case SeverityMedium:
		return ":large_yellow_circle:"
	case SeverityLow:
		return ":large_blue_circle:"
	default:
		return ":grey_question:"
	}
}
