package middleware

import (
	"crypto/subtle"
	"log"

	"bingo-event-system/apperrors"

	"github.com/gofiber/fiber/v2"
)

// ServiceToken guards internal routes called by other services. The token is
// read from X-Service-Token or, failing that, the Authorization bearer.
func ServiceToken(expected string) fiber.Handler {
	if expected == "" {
		log.Fatal("❌ SERVICE_TOKEN is not set, internal routes cannot authenticate callers")
	}

	return func(c *fiber.Ctx) error {
		token := c.Get("X-Service-Token")
		if token == "" {
			token = bearerToken(c.Get(fiber.HeaderAuthorization))
		}
		if token == "" {
			log.Printf("🚫 [SERVICE_AUTH] missing service token for %s", c.Path())
			return reject(c, apperrors.New(apperrors.CodeUnauthenticated, "service token missing"))
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			log.Printf("❌ [SERVICE_AUTH] invalid service token for %s", c.Path())
			return reject(c, apperrors.New(apperrors.CodeUnauthenticated, "invalid service token"))
		}
		return c.Next()
	}
}
