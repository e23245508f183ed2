package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	store Pinger
	redis Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// WithRedis adds the shared conversation store to the report
func (h *HealthHandler) WithRedis(redis Pinger) *HealthHandler {
	h.redis = redis
	return h
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, store := "healthy", "ok"
	if err := h.store.Ping(ctx); err != nil {
		status, store = "degraded", "unavailable"
	}

	resp := fiber.Map{
		"status":    status,
		"store":     store,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.redis != nil {
		resp["redis"] = "ok"
		if err := h.redis.Ping(ctx); err != nil {
			resp["status"], resp["redis"] = "degraded", "unavailable"
		}
	}

	return c.JSON(resp)
}
