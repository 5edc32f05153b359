// Package apperrors provides the typed domain error returned by every mutation.
package apperrors

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeConstraintViolated Code = "CONSTRAINT_VIOLATED"
	CodeInternal           Code = "INTERNAL"

	// Participation
	CodeAlreadyParticipant Code = "ALREADY_PARTICIPANT"
	CodeNotParticipant     Code = "NOT_PARTICIPANT"
	CodeAccessCodeMismatch Code = "ACCESS_CODE_MISMATCH"
	CodeJoinBlocked        Code = "JOIN_BLOCKED"
	CodeCreatorCannotLeave Code = "CREATOR_CANNOT_LEAVE"

	// Cards
	CodeCardAlreadyExists Code = "CARD_ALREADY_EXISTS"
	CodeCardMismatch      Code = "CARD_MISMATCH"
	CodeEventMismatch     Code = "EVENT_MISMATCH"
	CodeRevisionConflict  Code = "REVISION_CONFLICT"

	// Profiles
	CodeUsernameTaken Code = "USERNAME_TAKEN"
)

const notAuthorizedMessage = "Action not authorized."

// HTTPStatus maps the code to the response status used by the handlers.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case CodeForbidden, CodeCardMismatch, CodeEventMismatch, CodeAccessCodeMismatch,
		CodeJoinBlocked, CodeCreatorCannotLeave:
		return fiber.StatusForbidden
	case CodeNotFound, CodeNotParticipant:
		return fiber.StatusNotFound
	case CodeValidationFailed:
		return fiber.StatusBadRequest
	case CodeConstraintViolated, CodeAlreadyParticipant, CodeCardAlreadyExists,
		CodeUsernameTaken, CodeRevisionConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// authorizationFamily codes share one public message so callers cannot tell
// which ownership check failed.
func (c Code) authorizationFamily() bool {
	return c == CodeForbidden || c == CodeCardMismatch || c == CodeEventMismatch
}

// FieldError is a single input validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the domain error type.
type Error struct {
	Code    Code         // Machine-readable error code
	Message string       // Human-readable message
	Fields  []FieldError // Set for CodeValidationFailed
	Cause   error        // Wrapped underlying error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// PublicMessage is the text safe to show to the caller.
func (e *Error) PublicMessage() string {
	switch {
	case e.Code.authorizationFamily():
		return notAuthorizedMessage
	case e.Code == CodeInternal:
		return "Internal error."
	default:
		return e.Message
	}
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Internal wraps an unexpected persistence or infrastructure failure.
func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, message, cause)
}

// Validation builds a VALIDATION_FAILED error whose message joins every field message.
func Validation(fields ...FieldError) *Error {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	return &Error{
		Code:    CodeValidationFailed,
		Message: "Validation failed: " + strings.Join(msgs, ", "),
		Fields:  fields,
	}
}

// From returns err as a domain error, wrapping anything unknown as INTERNAL.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("unexpected error", err)
}

// CodeOf returns the code carried by err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}
