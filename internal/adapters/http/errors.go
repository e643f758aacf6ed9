package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/gpspath/internal/core/domain"
	"github.com/samirrijal/gpspath/internal/core/usecases"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // invalid_coordinate, invalid_parameter, not_found, io_failure, ...
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

// errBadRequest returns a 400 invalid_parameter error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, string(domain.KindInvalidParameter), msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, 503, "service_unavailable", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// statusFor maps an error to its HTTP status and API code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return 404, "not_found"
	case errors.Is(err, usecases.ErrHistoryDisabled):
		return 503, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return 503, "service_unavailable"
	}
	switch kind := domain.KindOf(err); kind {
	case domain.KindInvalidCoordinate, domain.KindInvalidParameter:
		return 400, string(kind)
	case domain.KindIOFailure, domain.KindExternalToolFailure:
		return 500, string(kind)
	}
	return 500, "internal_error"
}

// respondError writes err as an APIError.
func respondError(c *fiber.Ctx, err error) error {
	status, code := statusFor(err)
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Message
		if de.Err != nil {
			msg += ": " + de.Err.Error()
		}
	}
	if status >= 500 {
		LoggerFromCtx(c.UserContext()).Error("request failed", "code", code, "error", err)
	}
	return newError(c, status, code, msg)
}
