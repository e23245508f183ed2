package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	telegramAPIBase      = "https://api.telegram.org"
	telegramMaxChunkSize = 4000 // Telegram allows 4096 characters per message
)

// TelegramService delivers assistant replies through the Telegram Bot API
type TelegramService struct {
	botToken   string
	apiBase    string
	httpClient *http.Client
}

// NewTelegramService creates the service for one bot
func NewTelegramService(botToken string) *TelegramService {
	return &TelegramService{
		botToken:   botToken,
		apiBase:    telegramAPIBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether a bot token is configured
func (s *TelegramService) Enabled() bool {
	return s != nil && s.botToken != ""
}

// SendMessage sends text to a chat, split into parts when it is too long
func (s *TelegramService) SendMessage(ctx context.Context, chatID int64, text string) error {
	chunks := splitMessageIntoChunks(text, telegramMaxChunkSize)
	if len(chunks) > 1 {
		log.Printf("📨 [TELEGRAM] Splitting message (%d chars) into %d chunks", len(text), len(chunks))
	}

	for i, chunk := range chunks {
		if err := s.sendChunk(ctx, chatID, chunk); err != nil {
			return fmt.Errorf("failed to send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

// sendChunk uses HTML formatting and falls back to plain text when Telegram
// rejects the markup
func (s *TelegramService) sendChunk(ctx context.Context, chatID int64, text string) error {
	status, body, err := s.post(ctx, map[string]interface{}{
		"chat_id":    chatID,
		"text":       convertToTelegramHTML(text),
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	if !strings.Contains(body, "can't parse entities") {
		return fmt.Errorf("Telegram API error: %s", body)
	}

	log.Printf("⚠️  [TELEGRAM] HTML parsing failed, retrying without parse_mode")
	status, body, err = s.post(ctx, map[string]interface{}{
		"chat_id": chatID,
		"text":    stripMarkdown(text),
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("Telegram API error (plain): %s", body)
	}
	return nil
}

func (s *TelegramService) post(ctx context.Context, payload map[string]interface{}) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("failed to marshal Telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return 0, "", fmt.Errorf("failed to create Telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to send Telegram message: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	return resp.StatusCode, string(respBody), nil
}
