package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"healthbot/internal/models"
)

// TipProvider serves random tips
type TipProvider interface {
	RandomTip(ctx context.Context, category string) models.TipResponse
}

// TipsHandler serves random health tips
type TipsHandler struct {
	tips TipProvider
}

// NewTipsHandler creates a new tips handler
func NewTipsHandler(tips TipProvider) *TipsHandler {
	return &TipsHandler{tips: tips}
}

// Random returns one tip with related products
// GET /tips/random?category=
func (h *TipsHandler) Random(c *fiber.Ctx) error {
	category := strings.TrimSpace(c.Query("category"))
	return c.JSON(h.tips.RandomTip(c.UserContext(), category))
}
