package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Chat endpoints (per user when known, else per IP). Every message
	// costs several model calls.
	ChatMax        int
	ChatExpiration time.Duration

	// Messaging webhooks (per sender)
	WebhookMax        int
	WebhookExpiration time.Duration

	// Public read endpoints (per IP)
	PublicReadMax        int
	PublicReadExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Chat: 20/min, generous for a human typing
		ChatMax:        20,
		ChatExpiration: 1 * time.Minute,

		// Webhooks: 10/min per sender
		WebhookMax:        10,
		WebhookExpiration: 1 * time.Minute,

		// Public read endpoints: 120/min = 2 req/sec
		PublicReadMax:        120,
		PublicReadExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if n, ok := positiveEnv("RATE_LIMIT_CHAT"); ok {
		config.ChatMax = n
	}
	if n, ok := positiveEnv("RATE_LIMIT_WEBHOOK"); ok {
		config.WebhookMax = n
	}
	if n, ok := positiveEnv("RATE_LIMIT_PUBLIC_READ"); ok {
		config.PublicReadMax = n
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.ChatMax = 200
		config.WebhookMax = 100
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

func positiveEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ChatRateLimiter limits chat requests by the user_id in the body, falling
// back to the client IP
func ChatRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.ChatMax,
		Expiration: config.ChatExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			var body struct {
				UserID string `json:"user_id"`
			}
			if err := c.BodyParser(&body); err == nil && body.UserID != "" {
				return "chat:" + body.UserID // concatenation copies out of the request buffer
			}
			return "chat-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Chat limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many messages. Please wait before trying again.",
				"retry_after": int(config.ChatExpiration.Seconds()),
			})
		},
	})
}

// WebhookRateLimiter limits messaging webhooks per sender. Twilio posts
// From, Telegram updates fall back to the IP.
func WebhookRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.WebhookMax,
		Expiration: config.WebhookExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if from := c.FormValue("From"); from != "" {
				return "webhook:" + from // concatenation copies out of the request buffer
			}
			return "webhook-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Webhook limit reached on %s", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many messages.",
				"retry_after": int(config.WebhookExpiration.Seconds()),
			})
		},
	})
}

// PublicReadRateLimiter for public read-only endpoints
func PublicReadRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.PublicReadMax,
		Expiration: config.PublicReadExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "public:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Public endpoint limit reached for IP: %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests to this endpoint.",
				"retry_after": int(config.PublicReadExpiration.Seconds()),
			})
		},
	})
}
