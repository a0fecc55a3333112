package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gofiber/fiber/v2"

	"memvault/internal/config"
)

// APIKeyAuth validates the shared-secret X-API-Key header.
// In strict mode (production, or AUTH_STRICT=true) requests without a
// matching key are rejected with 401. In relaxed development mode the
// check is skipped so local clients can talk to the API without a key.
func APIKeyAuth(cfg *config.Config) fiber.Handler {
	if !cfg.StrictAuth() {
		log.Println("⚠️  [AUTH] Relaxed mode: API key enforcement disabled")
		return func(c *fiber.Ctx) error {
			c.Locals("auth_type", "relaxed")
			return c.Next()
		}
	}

	if cfg.APIKey == "" {
		log.Println("❌ [AUTH] Strict mode enabled but API_KEY is not set; all requests will be rejected")
	}

	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing API key. Include X-API-Key header.",
			})
		}

		if cfg.APIKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.APIKey)) != 1 {
			log.Printf("❌ [AUTH] Invalid API key attempt from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid API key",
			})
		}

		c.Locals("auth_type", "api_key")
		return c.Next()
	}
}
