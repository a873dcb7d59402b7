package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, validation_failed, parse_error, not_found, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errTooLarge returns a 413 error.
func errTooLarge(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusRequestEntityTooLarge, "payload_too_large", msg)
}

// requestError is a malformed request body detected inside a workspace task.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func bodyError(msg string) error { return &requestError{msg: msg} }

// respondError maps engine errors onto the API error envelope.
func respondError(c *fiber.Ctx, err error) error {
	var pe *domain.ParseError
	var re *requestError
	switch {
	case errors.As(err, &re):
		return errBadRequest(c, re.msg)
	case errors.Is(err, errInvalidIncident):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrShapeNotFound),
		errors.Is(err, domain.ErrTraceNotFound),
		errors.Is(err, domain.ErrNoPointZero):
		return errNotFound(c, err.Error())
	case errors.As(err, &pe):
		return newError(c, fiber.StatusBadRequest, "parse_error", err.Error())
	case domain.IsValidation(err):
		return newError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrWorkspaceClosed):
		return newError(c, fiber.StatusServiceUnavailable, "unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, fiber.StatusGatewayTimeout, "timeout", "request timed out")
	}
	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return errInternal(c, "internal error")
}
