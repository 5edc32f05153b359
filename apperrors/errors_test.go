package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestPublicMessageHidesAuthorizationDetails(t *testing.T) {
	for _, code := range []Code{CodeForbidden, CodeCardMismatch, CodeEventMismatch} {
		err := New(code, "card belongs to participant 42")
		assert.Equal(t, "Action not authorized.", err.PublicMessage(), code)
	}

	err := New(CodeAccessCodeMismatch, "Incorrect access code.")
	assert.Equal(t, "Incorrect access code.", err.PublicMessage())
}

func TestValidationJoinsFieldMessages(t *testing.T) {
	err := Validation(
		FieldError{Field: "name", Message: "name must contain at least 3 characters"},
		FieldError{Field: "description", Message: "description must contain at most 500 characters"},
	)

	assert.Equal(t, CodeValidationFailed, err.Code)
	assert.Equal(t,
		"Validation failed: name must contain at least 3 characters, description must contain at most 500 characters",
		err.PublicMessage())
	assert.Len(t, err.Fields, 2)
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", New(CodeAlreadyParticipant, "already in"))

	assert.True(t, errors.Is(wrapped, New(CodeAlreadyParticipant, "")))
	assert.False(t, errors.Is(wrapped, New(CodeNotParticipant, "")))
	assert.Equal(t, CodeAlreadyParticipant, CodeOf(wrapped))
}

func TestFromWrapsUnknownErrorsAsInternal(t *testing.T) {
	cause := errors.New("connection reset")
	err := From(cause)

	assert.Equal(t, CodeInternal, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Internal error.", err.PublicMessage())
	assert.Nil(t, From(nil))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeUnauthenticated:    fiber.StatusUnauthorized,
		CodeForbidden:          fiber.StatusForbidden,
		CodeNotFound:           fiber.StatusNotFound,
		CodeNotParticipant:     fiber.StatusNotFound,
		CodeValidationFailed:   fiber.StatusBadRequest,
		CodeAlreadyParticipant: fiber.StatusConflict,
		CodeCardAlreadyExists:  fiber.StatusConflict,
		CodeRevisionConflict:   fiber.StatusConflict,
		CodeInternal:           fiber.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), code)
	}
}
