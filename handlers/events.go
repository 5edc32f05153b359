package handlers

import (
	"strconv"

	"bingo-event-system/apperrors"
	"bingo-event-system/middleware"
	"bingo-event-system/services"

	"github.com/gofiber/fiber/v2"
)

type joinRequest struct {
	UserID     string `json:"user_id"`
	AccessCode string `json:"access_code"`
}

type leaveRequest struct {
	UserID string `json:"user_id"`
}

type advanceRequest struct {
	ExpectedRevision *int `json:"expected_revision"`
}

// SetupEventRoutes registers event, participation, card and leaderboard routes.
func SetupEventRoutes(app *fiber.App, auth Auth, events *services.EventService, cards *services.CardService, boards *services.LeaderboardService) {
	// Public reads
	app.Get("/events", auth.Optional, func(c *fiber.Ctx) error {
		list, err := events.ListEvents(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, list)
	})

	app.Get("/events/:id", auth.Optional, func(c *fiber.Ctx) error {
		event, err := events.GetEvent(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, event)
	})

	app.Get("/events/:id/leaderboard", auth.Optional, func(c *fiber.Ctx) error {
		board, err := boards.EventLeaderboard(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, board)
	})

	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		entries, err := boards.GlobalLeaderboard(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, entries)
	})

	// Events and participation
	app.Post("/events", auth.Required, func(c *fiber.Ctx) error {
		var in services.CreateEventInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		event, err := events.CreateEvent(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusCreated, event)
	})

	app.Put("/events/:id", auth.Required, func(c *fiber.Ctx) error {
		var in services.EventFields
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		event, err := events.UpdateEvent(c.UserContext(), middleware.UserID(c), c.Params("id"), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, event)
	})

	app.Post("/events/:id/join", auth.Required, func(c *fiber.Ctx) error {
		requester := middleware.UserID(c)
		in := joinRequest{UserID: requester}
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		participant, err := events.JoinEvent(c.UserContext(), requester, c.Params("id"), in.UserID, in.AccessCode)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusCreated, participant)
	})

	app.Post("/events/:id/leave", auth.Required, func(c *fiber.Ctx) error {
		requester := middleware.UserID(c)
		in := leaveRequest{UserID: requester}
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		if err := events.LeaveEvent(c.UserContext(), requester, c.Params("id"), in.UserID); err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, nil)
	})

	app.Get("/me/events", auth.Required, func(c *fiber.Ctx) error {
		mine, err := events.MyEvents(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, mine)
	})

	// Cards
	app.Get("/events/:id/my-card", auth.Required, func(c *fiber.Ctx) error {
		card, err := cards.GetMyCard(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, card)
	})

	app.Put("/events/:id/my-card", auth.Required, func(c *fiber.Ctx) error {
		var in services.SaveCardInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		in.EventID = c.Params("id")
		card, err := cards.SaveCard(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, card)
	})

	app.Post("/events/:id/cards/:cardId/cells/:cellId/advance", auth.Required, func(c *fiber.Ctx) error {
		cellID, err := strconv.Atoi(c.Params("cellId"))
		if err != nil {
			return respondError(c, apperrors.Validation(apperrors.FieldError{Field: "cell_id", Message: "cell_id must be a number"}))
		}
		var in advanceRequest
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		card, err := cards.AdvanceCellStatus(c.UserContext(), middleware.UserID(c), services.AdvanceCellInput{
			BingoCardID:      c.Params("cardId"),
			CellID:           cellID,
			EventID:          c.Params("id"),
			ExpectedRevision: in.ExpectedRevision,
		})
		if err != nil {
			return respondError(c, err)
		}
		return respond(c, fiber.StatusOK, card)
	})
}
