package handlers

import (
	"context"
	"crypto/subtle"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"healthbot/internal/models"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramSender delivers replies to a Telegram chat
type TelegramSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// TelegramHandler receives bot updates and answers them out of band so the
// webhook returns before the pipeline finishes
type TelegramHandler struct {
	assistant   Assistant
	sender      TelegramSender
	secret      string
	sendTimeout time.Duration

	pending sync.WaitGroup
}

// NewTelegramHandler creates a new Telegram handler. An empty secret
// disables the secret-token check.
func NewTelegramHandler(assistant Assistant, sender TelegramSender, secret string) *TelegramHandler {
	return &TelegramHandler{
		assistant:   assistant,
		sender:      sender,
		secret:      secret,
		sendTimeout: 30 * time.Second,
	}
}

// Webhook accepts a Telegram update
// POST /telegram/webhook
func (h *TelegramHandler) Webhook(c *fiber.Ctx) error {
	if h.secret != "" {
		got := c.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			log.Printf("🚫 [TELEGRAM] Rejected update with bad secret token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid secret token"})
		}
	}

	var update models.TelegramUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid update"})
	}

	// Telegram retries non-2xx responses, so unsupported updates are acknowledged
	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return c.JSON(fiber.Map{"ok": true})
	}
	if msg.From != nil && msg.From.IsBot {
		return c.JSON(fiber.Map{"ok": true})
	}

	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	userID := "telegram:" + strconv.FormatInt(chatID, 10)

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		h.process(chatID, userID, text)
	}()

	return c.JSON(fiber.Map{"ok": true})
}

func (h *TelegramHandler) process(chatID int64, userID, text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [TELEGRAM] Update processing panicked: %v", r)
		}
	}()

	reply := h.assistant.HandleMessage(context.Background(), models.ChannelTelegram, userID, text)

	ctx, cancel := context.WithTimeout(context.Background(), h.sendTimeout)
	defer cancel()
	if err := h.sender.SendMessage(ctx, chatID, reply); err != nil {
		log.Printf("❌ [TELEGRAM] Failed to deliver reply to chat %d: %v", chatID, err)
	}
}

// Wait blocks until in-flight updates are answered
func (h *TelegramHandler) Wait() {
	h.pending.Wait()
}
