package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/auralabs/aura/pkg/hitl"
	"github.com/auralabs/aura/pkg/logging"
)

const telegramAPIBase = "https://api.telegram.org"

// Decider accepts approval decisions made outside the main frontend.
// *hitl.Store satisfies it.
type Decider interface {
	Approve(operationID string, modifiedArgs map[string]any) error
	Reject(operationID, reason string) error
}

// TelegramForwarder mirrors pending operations to a Telegram chat with
// inline Approve/Reject buttons, and feeds button presses back into the
// store. Useful when the reviewer is away from their editor.
type TelegramForwarder struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	decider  Decider
	logger   *logging.Logger
}

// TelegramConfig configures the Telegram forwarder.
type TelegramConfig struct {
	// BotToken is the bot token from @BotFather.
	BotToken string

	// ChatID is the chat or user to notify.
	ChatID string
}

// NewTelegramForwarder creates a Telegram forwarder. The decider may be
// nil, in which case buttons are omitted and the feed is one-way.
func NewTelegramForwarder(cfg TelegramConfig, decider Decider, logger *logging.Logger) (*TelegramForwarder, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("chat ID is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &TelegramForwarder{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		apiBase:  telegramAPIBase,
		client:   &http.Client{Timeout: 45 * time.Second},
		decider:  decider,
		logger:   logger,
	}, nil
}

// Forward implements Forwarder.
func (t *TelegramForwarder) Forward(msg Message) {
	var text strings.Builder
	var buttons bool

	switch msg.Type {
	case TypePendingOperation:
		text.WriteString("⏳ *Approval needed*\n\n")
		fmt.Fprintf(&text, "*%s* on `%s`\n", escapeMarkdown(msg.Operation.ToolName), msg.Operation.FilePath)
		if msg.Diff != "" {
			text.WriteString("```\n" + truncate(msg.Diff, 2800) + "\n```")
		}
		buttons = t.decider != nil
	case TypeStatusUpdate:
		switch msg.Status {
		case hitl.StatusExpired:
			fmt.Fprintf(&text, "⌛ Operation `%s` expired without a decision", msg.OperationID)
		default:
			return
		}
	case TypeExecutionResult:
		if msg.Status == hitl.StatusFailed {
			fmt.Fprintf(&text, "❌ Operation `%s` failed: %s", msg.OperationID, escapeMarkdown(msg.Error))
		} else {
			fmt.Fprintf(&text, "✅ Operation `%s` completed", msg.OperationID)
		}
	default:
		return
	}

	text.WriteString(fmt.Sprintf("\n\n_Session: %s_", msg.SessionID))

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text.String(),
		"parse_mode": "Markdown",
	}
	if buttons {
		payload["reply_markup"] = map[string]any{
			"inline_keyboard": [][]map[string]string{{
				{"text": "Approve", "callback_data": msg.Operation.OperationID + ":approve"},
				{"text": "Reject", "callback_data": msg.Operation.OperationID + ":reject"},
			}},
		}
	}

	if err := t.call("sendMessage", payload); err != nil {
		t.logger.Warn(logging.CategoryNetwork, "telegram_forward_failed", err.Error(), map[string]any{
			"session_id": msg.SessionID,
			"type":       msg.Type,
		})
	}
}

// Run long-polls for button presses and applies them to the decider.
// Blocks until ctx is cancelled; callers run it in a goroutine.
func (t *TelegramForwarder) Run(ctx context.Context) error {
	if t.decider == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := t.getUpdates(ctx, offset)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.CallbackQuery != nil {
				t.handleCallback(update.CallbackQuery)
			}
		}
	}
}

type telegramUpdate struct {
	UpdateID      int                    `json:"update_id"`
	CallbackQuery *telegramCallbackQuery `json:"callback_query,omitempty"`
}

type telegramCallbackQuery struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

func (t *TelegramForwarder) handleCallback(query *telegramCallbackQuery) {
	parts := strings.SplitN(query.Data, ":", 2)
	if len(parts) != 2 {
		return
	}
	operationID, action := parts[0], parts[1]

	var err error
	switch action {
	case "approve":
		err = t.decider.Approve(operationID, nil)
	case "reject":
		err = t.decider.Reject(operationID, "rejected via telegram")
	default:
		return
	}

	ack := "Done"
	if err != nil {
		ack = err.Error()
		t.logger.Warn(logging.CategoryHITL, "telegram_decision_failed", err.Error(), map[string]any{
			"operation_id": operationID,
			"action":       action,
		})
	}
	_ = t.call("answerCallbackQuery", map[string]any{
		"callback_query_id": query.ID,
		"text":              ack,
	})
}

func (t *TelegramForwarder) getUpdates(ctx context.Context, offset int) ([]telegramUpdate, error) {
	data, err := json.Marshal(map[string]any{
		"offset":  offset,
		"timeout": 30,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var result struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram getUpdates not ok")
	}
	return result.Result, nil
}

func (t *TelegramForwarder) call(method string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.botToken, method)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram API error: %s", string(body))
	}
	return nil
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
