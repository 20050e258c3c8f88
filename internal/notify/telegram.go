// Package notify delivers reminder messages to their recipients over
// the Telegram Bot API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"subtrack/internal/amqp"
)

// TelegramSender sends chat messages through the Bot API. One instance
// serves one bot token.
type TelegramSender struct {
	apiURL string
	token  string
	client *http.Client
	logger *slog.Logger
}

func NewTelegramSender(apiURL, token string, timeout time.Duration, logger *slog.Logger) *TelegramSender {
	return &TelegramSender{
		apiURL: apiURL,
		token:  token,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendReminder formats and delivers one reminder. The error is
// retryable from the caller's point of view: the consumer requeues the
// message on failure.
func (s *TelegramSender) SendReminder(ctx context.Context, msg *amqp.ReminderMessage) error {
	text := fmt.Sprintf("🔔 <b>%s</b> bills on %s\n%.2f %s",
		msg.SubscriptionName, msg.NextBillDate, msg.Price, msg.Currency)

	if err := s.sendMessage(ctx, msg.RecipientID, text); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "reminder delivered",
		"telegram_id", msg.RecipientID,
		"subscription_name", msg.SubscriptionName,
		"next_bill", msg.NextBillDate)
	return nil
}

func (s *TelegramSender) sendMessage(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("call telegram: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	var parsed sendMessageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("telegram returned status %d with unreadable body", resp.StatusCode)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram rejected message (status %d): %s", resp.StatusCode, parsed.Description)
	}
	return nil
}
