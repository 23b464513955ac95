package serverutils

import (
	"errors"

	"live-relay-be/internal/errs"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns errors returned by handlers into the
// standard response envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusCode(err)
		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}

func StatusCode(err error) int {
	var fiberErr *fiber.Error
	var validationErr *ValidationError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errs.ErrInactive):
		return fiber.StatusGone
	case errors.Is(err, errs.ErrNotAuthorized):
		return fiber.StatusForbidden
	case errors.Is(err, errs.ErrChatDisabled):
		return fiber.StatusForbidden
	case errors.Is(err, errs.ErrBroadcasterConflict):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
