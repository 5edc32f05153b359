package handlers

import (
	"bingo-event-system/apperrors"
	"bingo-event-system/middleware"
	"bingo-event-system/notifications"
	"bingo-event-system/services"

	"github.com/gofiber/fiber/v2"
)

type provisionRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// SetupProfileRoutes registers profile pages, profile edits and avatar uploads.
func SetupProfileRoutes(app *fiber.App, auth Auth, profiles *services.ProfileService) {
	app.Get("/users/:id", auth.Optional, func(c *fiber.Ctx) error {
		view, err := profiles.GetProfile(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, view)
	})

	app.Put("/profile", auth.Required, func(c *fiber.Ctx) error {
		var in services.UsernameInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		userID := middleware.UserID(c)
		profile, err := profiles.UpdateProfile(c.UserContext(), userID, userID, in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, profile)
	})

	app.Post("/profile/avatar", auth.Required, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("avatar")
		if err != nil {
			return respondError(c, apperrors.Validation(apperrors.FieldError{Field: "avatar", Message: "avatar is required"}))
		}
		file, err := fh.Open()
		if err != nil {
			return respondError(c, apperrors.Internal("open avatar upload", err))
		}
		defer file.Close()

		profile, err := profiles.UploadAvatar(c.UserContext(), middleware.UserID(c), services.AvatarUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Body:        file,
		})
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, profile)
	})
}

// SetupInternalRoutes registers routes reserved for other services.
func SetupInternalRoutes(app *fiber.App, serviceToken fiber.Handler, profiles *services.ProfileService) {
	app.Post("/internal/profiles", serviceToken, func(c *fiber.Ctx) error {
		var in provisionRequest
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		profile, err := profiles.Provision(c.UserContext(), in.ID, services.UsernameInput{Username: in.Username})
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusCreated, profile)
	})
}

// SetupNotificationRoutes registers push subscription management.
func SetupNotificationRoutes(app *fiber.App, auth Auth, dispatcher *notifications.Dispatcher) {
	app.Post("/notifications/subscribe", auth.Required, func(c *fiber.Ctx) error {
		var in notifications.SubscriptionInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		sub, err := dispatcher.Subscribe(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, sub)
	})
}
