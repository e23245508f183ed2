package middleware

import (
	"log"
	"net/url"

	"github.com/gofiber/fiber/v2"
)

// SignatureValidator checks a Twilio request signature
type SignatureValidator interface {
	ValidateSignature(fullURL string, params url.Values, signature string) bool
}

// TwilioSignature rejects webhook calls whose X-Twilio-Signature does not
// match. publicBaseURL is the externally visible scheme and host, since the
// signature covers the URL Twilio called rather than the one we see behind a
// proxy.
func TwilioSignature(validator SignatureValidator, publicBaseURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		params := url.Values{}
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params.Add(string(key), string(value))
		})

		fullURL := publicBaseURL + c.OriginalURL()
		if !validator.ValidateSignature(fullURL, params, c.Get("X-Twilio-Signature")) {
			log.Printf("🚫 [TWILIO] Invalid signature for %s", c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid signature"})
		}
		return c.Next()
	}
}
