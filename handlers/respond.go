// Package handlers exposes the services over HTTP. Every response uses the
// {"error", "code", "data"} envelope.
package handlers

import (
	"log"

	"bingo-event-system/apperrors"

	"github.com/gofiber/fiber/v2"
)

const codeOK = "OK"

// Auth carries the identity middleware applied per route.
type Auth struct {
	Required fiber.Handler
	Optional fiber.Handler
}

type envelope struct {
	Error  *string                `json:"error"`
	Code   string                 `json:"code"`
	Data   any                    `json:"data"`
	Fields []apperrors.FieldError `json:"fields,omitempty"`
}

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(envelope{Code: codeOK, Data: data})
}

func respondError(c *fiber.Ctx, err error) error {
	appErr := apperrors.From(err)
	if appErr.Code == apperrors.CodeInternal {
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), appErr)
	}
	msg := appErr.PublicMessage()
	return c.Status(appErr.Code.HTTPStatus()).JSON(envelope{
		Error:  &msg,
		Code:   string(appErr.Code),
		Fields: appErr.Fields,
	})
}

// parseBody decodes a JSON body into dest. An empty body leaves dest untouched.
func parseBody(c *fiber.Ctx, dest any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(dest); err != nil {
		return apperrors.Wrap(apperrors.CodeValidationFailed, "Validation failed: invalid request body", err)
	}
	return nil
}
