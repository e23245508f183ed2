package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"healthbot/internal/models"
	"healthbot/internal/services"
)

// Assessments serves and scores self-assessment questionnaires
type Assessments interface {
	GetAssessment(category string) models.AssessmentTemplate
	Score(ctx context.Context, category string, answers map[string]string) (*models.AssessmentResult, error)
}

// AssessmentHandler exposes the questionnaires
type AssessmentHandler struct {
	assessments Assessments
}

// NewAssessmentHandler creates a new assessment handler
func NewAssessmentHandler(assessments Assessments) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// Get returns the questionnaire for a category
// GET /assessments/:category
func (h *AssessmentHandler) Get(c *fiber.Ctx) error {
	return c.JSON(h.assessments.GetAssessment(c.Params("category")))
}

// Score grades submitted answers keyed by question ID
// POST /assessments/:category/score
func (h *AssessmentHandler) Score(c *fiber.Ctx) error {
	var req struct {
		Answers map[string]string `json:"answers"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := h.assessments.Score(c.UserContext(), c.Params("category"), req.Answers)
	if errors.Is(err, services.ErrUnknownAssessment) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid assessment category"})
	}
	if err != nil {
		log.Printf("❌ [ASSESSMENT] Scoring failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to score assessment"})
	}

	return c.JSON(result)
}
