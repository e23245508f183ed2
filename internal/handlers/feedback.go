package handlers

import (
	"context"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"healthbot/internal/models"
)

// FeedbackRecorder stores user ratings
type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, f models.FeedbackEntry) (string, error)
}

// FeedbackHandler accepts ratings of the assistant
type FeedbackHandler struct {
	recorder FeedbackRecorder
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(recorder FeedbackRecorder) *FeedbackHandler {
	return &FeedbackHandler{recorder: recorder}
}

// Submit stores one rating
// POST /feedback
func (h *FeedbackHandler) Submit(c *fiber.Ctx) error {
	var req models.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Rating == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Rating is required"})
	}
	if *req.Rating < 1 || *req.Rating > 5 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Rating must be between 1 and 5"})
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = defaultUserID
	}

	id, err := h.recorder.RecordFeedback(c.UserContext(), models.FeedbackEntry{
		UserID:  userID,
		Rating:  *req.Rating,
		Comment: strings.TrimSpace(req.Comment),
	})
	if err != nil {
		log.Printf("❌ [FEEDBACK] Failed to store feedback: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store feedback"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"id":     id,
	})
}
