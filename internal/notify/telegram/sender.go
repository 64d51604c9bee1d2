// Package telegram delivers notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/plantops/downtime-keeper/internal/domain"
	"github.com/plantops/downtime-keeper/internal/notify"
)

const defaultBaseURL = "https://api.telegram.org"

// Config holds telegram sender configuration.
type Config struct {
	Enabled   bool
	BotToken  string
	RateLimit float64 // messages per second, Bot API allows ~30
	BaseURL   string  // overridden in tests
}

// Sender implements notify.Notifier over the Bot API.
type Sender struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewSender creates a telegram sender.
// Returns error if enabled but required config is missing.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.BotToken == "" {
		return nil, errors.New("telegram sender: bot token is required when enabled")
	}

	limit := config.RateLimit
	if limit <= 0 {
		limit = 25
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	slog.Info("telegram sender configured",
		"enabled", config.Enabled,
		"rate_limit", limit,
	)

	return &Sender{
		config:  config,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
		baseURL: baseURL,
	}, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

// Notify sends a message (or photo when msg.MediaRef is set) to a chat.
func (s *Sender) Notify(ctx context.Context, recipient string, msg notify.Message) (domain.MessageRef, error) {
	if !s.config.Enabled {
		slog.Debug("telegram sender disabled, skipping", "to", recipient)
		return domain.MessageRef{}, nil
	}

	payload := map[string]interface{}{
		"chat_id": recipient,
	}
	method := "sendMessage"
	if msg.MediaRef != "" {
		method = "sendPhoto"
		payload["photo"] = msg.MediaRef
		payload["caption"] = msg.Text
	} else {
		payload["text"] = msg.Text
	}
	if msg.ReplyTo != nil {
		payload["reply_to_message_id"] = msg.ReplyTo.MessageID
	}
	if kb := inlineKeyboard(msg.Actions); kb != nil {
		payload["reply_markup"] = kb
	}

	var sent sentMessage
	if err := s.call(ctx, method, payload, &sent); err != nil {
		return domain.MessageRef{}, err
	}
	return domain.MessageRef{ChatID: recipient, MessageID: sent.MessageID}, nil
}

// Edit replaces the text (or caption) of a previously sent message.
func (s *Sender) Edit(ctx context.Context, ref domain.MessageRef, msg notify.Message) error {
	if !s.config.Enabled {
		return nil
	}
	if ref.IsZero() {
		return errors.New("telegram sender: empty message ref")
	}

	payload := map[string]interface{}{
		"chat_id":    ref.ChatID,
		"message_id": ref.MessageID,
	}
	method := "editMessageText"
	if msg.MediaRef != "" {
		method = "editMessageCaption"
		payload["caption"] = msg.Text
	} else {
		payload["text"] = msg.Text
	}
	if kb := inlineKeyboard(msg.Actions); kb != nil {
		payload["reply_markup"] = kb
	}

	return s.call(ctx, method, payload, nil)
}

func (s *Sender) call(ctx context.Context, method string, payload map[string]interface{}, result interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.config.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !api.OK {
		return fmt.Errorf("%s failed (status %d): %s", method, resp.StatusCode, api.Description)
	}

	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func inlineKeyboard(actions []notify.Action) map[string]interface{} {
	if len(actions) == 0 {
		return nil
	}
	rows := make([][]map[string]string, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, []map[string]string{{
			"text":          a.Label,
			"callback_data": a.Data,
		}})
	}
	return map[string]interface{}{"inline_keyboard": rows}
}

// ChatID formats a numeric telegram chat id as a recipient address.
func ChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
