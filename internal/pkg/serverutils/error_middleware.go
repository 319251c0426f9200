package serverutils

import (
	"errors"

	"ai-studykit-be/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts classified errors into HTTP responses so
// controllers can simply return what the services hand them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		status := statusForKind(apperr.KindOf(err))
		message := err.Error()
		if status == fiber.StatusInternalServerError {
			// Internal details stay in the logs.
			message = "internal server error"
		}
		return ctx.Status(status).JSON(ErrorResponse(status, message))
	}
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput, apperr.KindOutOfRange:
		return fiber.StatusBadRequest
	case apperr.KindIncompleteUpload, apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindBrokerUnreachable:
		return fiber.StatusServiceUnavailable
	case apperr.KindWorkerReported:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
