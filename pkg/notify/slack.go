package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/auralabs/aura/pkg/hitl"
	"github.com/auralabs/aura/pkg/logging"
)

// SlackForwarder mirrors the approval feed onto a Slack incoming
// webhook, so reviewers see pending operations without keeping the app
// open. Delivery is best-effort.
type SlackForwarder struct {
	webhookURL string
	channel    string
	client     *http.Client
	logger     *logging.Logger
}

// SlackConfig configures the Slack forwarder.
type SlackConfig struct {
	// WebhookURL is the Slack incoming webhook URL.
	WebhookURL string

	// Channel overrides the webhook's default channel (optional).
	Channel string
}

// NewSlackForwarder creates a Slack forwarder.
func NewSlackForwarder(cfg SlackConfig, logger *logging.Logger) (*SlackForwarder, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &SlackForwarder{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// Forward implements Forwarder. Only events a human acts on are posted;
// status updates the reviewer caused themselves would be noise.
func (s *SlackForwarder) Forward(msg Message) {
	var title, text, color string
	switch msg.Type {
	case TypePendingOperation:
		title = fmt.Sprintf(":hourglass_flowing_sand: Approval needed: %s", msg.Operation.ToolName)
		text = msg.Operation.FilePath
		if msg.Diff != "" {
			text += "\n```" + truncate(msg.Diff, 2800) + "```"
		}
		color = "#FFAA00"
	case TypeExecutionResult:
		if msg.Status == hitl.StatusFailed {
			title = fmt.Sprintf(":x: Operation failed: %s", msg.OperationID)
			text = msg.Error
			color = "#FF0000"
		} else {
			title = fmt.Sprintf(":white_check_mark: Operation completed: %s", msg.OperationID)
			text = truncate(msg.Result, 500)
			color = "#00FF00"
		}
	default:
		return
	}

	payload := map[string]any{
		"username":   "Aura",
		"icon_emoji": ":robot_face:",
		"attachments": []map[string]any{
			{
				"color":     color,
				"title":     title,
				"text":      text,
				"footer":    fmt.Sprintf("Session: %s", msg.SessionID),
				"ts":        msg.Timestamp.Unix(),
				"mrkdwn_in": []string{"text"},
			},
		},
	}
	if s.channel != "" {
		payload["channel"] = s.channel
	}

	if err := s.post(payload); err != nil {
		s.logger.Warn(logging.CategoryNetwork, "slack_forward_failed", err.Error(), map[string]any{
			"session_id": msg.SessionID,
			"type":       msg.Type,
		})
	}
}

func (s *SlackForwarder) post(payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack webhook error: %s", string(body))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
