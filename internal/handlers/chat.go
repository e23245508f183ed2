package handlers

import (
	"context"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"healthbot/internal/models"
	"healthbot/internal/services"
)

const defaultUserID = "default_user"

// Assistant is the message pipeline consumed by every channel adapter
type Assistant interface {
	HandleMessage(ctx context.Context, channel models.Channel, userID, message string) string
	GetRecentHistory(ctx context.Context, userID string, limit int) ([]models.Turn, error)
}

// ChatHandler serves the JSON web chat
type ChatHandler struct {
	assistant Assistant
}

// NewChatHandler creates a new chat handler
func NewChatHandler(assistant Assistant) *ChatHandler {
	return &ChatHandler{assistant: assistant}
}

// Chat answers one message
// POST /chat
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	// Form-encoded bodies bind strings that alias the request buffer
	message := utils.CopyString(strings.TrimSpace(req.Message))
	if message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message is required"})
	}

	userID := utils.CopyString(strings.TrimSpace(req.UserID))
	if userID == "" {
		userID = defaultUserID
	}

	reply := h.assistant.HandleMessage(c.UserContext(), models.ChannelWeb, userID, message)

	return c.JSON(models.ChatResponse{
		Response:     reply,
		ResponseHTML: services.RenderAnswerHTML(reply),
		UserID:       userID,
	})
}

// History returns a user's recent turns
// GET /chat/history/:user_id?limit=
func (h *ChatHandler) History(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must not be negative"})
	}

	turns, err := h.assistant.GetRecentHistory(c.UserContext(), userID, limit)
	if err != nil {
		log.Printf("❌ [CHAT] Failed to load history: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load history"})
	}

	return c.JSON(models.HistoryResponse{
		UserID: userID,
		Turns:  turns,
		Count:  len(turns),
	})
}
