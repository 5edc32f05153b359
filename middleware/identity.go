package middleware

import (
	"context"
	"errors"
	"log"
	"strings"

	"bingo-event-system/apperrors"
	"bingo-event-system/identity"
	"bingo-event-system/models"

	"github.com/gofiber/fiber/v2"
)

const userIDKey = "user_id"

// ProfileEnsurer creates a profile the first time a user is seen.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// RequireUser rejects requests without a valid bearer token.
func RequireUser(provider identity.Provider, profiles ProfileEnsurer) fiber.Handler {
	return authenticate(provider, profiles, true)
}

// OptionalIdentity resolves the caller when a token is present and lets
// anonymous requests through. A token that fails verification is still rejected.
func OptionalIdentity(provider identity.Provider, profiles ProfileEnsurer) fiber.Handler {
	return authenticate(provider, profiles, false)
}

func authenticate(provider identity.Provider, profiles ProfileEnsurer, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			if required {
				return reject(c, apperrors.New(apperrors.CodeUnauthenticated, "Authentication required."))
			}
			return c.Next()
		}

		userID, err := provider.Authenticate(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, identity.ErrInvalidCredentials) {
				log.Printf("⚠️ [AUTH] identity provider error on %s: %v", c.Path(), err)
			}
			return reject(c, apperrors.Wrap(apperrors.CodeUnauthenticated, "Authentication required.", err))
		}

		if _, err := profiles.EnsureProfile(c.UserContext(), userID); err != nil {
			log.Printf("❌ [AUTH] failed to ensure profile for %s: %v", userID, err)
			return reject(c, apperrors.From(err))
		}

		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// UserID returns the authenticated caller, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func reject(c *fiber.Ctx, err error) error {
	appErr := apperrors.From(err)
	return c.Status(appErr.Code.HTTPStatus()).JSON(fiber.Map{
		"error": appErr.PublicMessage(),
		"code":  appErr.Code,
		"data":  nil,
	})
}
