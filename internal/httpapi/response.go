package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"deadline-tracker/internal/linkform"
	"deadline-tracker/internal/service"
	"deadline-tracker/internal/store"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

// domainError maps store and form errors to the envelope. Anything it does
// not recognise is logged and becomes a 500 with fallback as the message.
func domainError(c fiber.Ctx, log *zap.Logger, err error, fallback string) error {
	var (
		verr *linkform.ValidationError
		ferr *fiber.Error
	)
	switch {
	case errors.As(err, &ferr):
		return jsonError(c, ferr.Code, ferr.Message)
	case errors.As(err, &verr):
		return jsonError(c, fiber.StatusBadRequest, verr.Error())
	case errors.Is(err, store.ErrLinkNotFound):
		return jsonError(c, fiber.StatusNotFound, "link not found")
	case errors.Is(err, store.ErrNotificationNotFound):
		return jsonError(c, fiber.StatusNotFound, "notification not found")
	case errors.Is(err, store.ErrAmbiguousID):
		return jsonError(c, fiber.StatusBadRequest, "id prefix is ambiguous")
	case service.IsNotFound(err):
		return jsonError(c, fiber.StatusNotFound, "not found")
	default:
		log.Error(fallback, zap.String("path", c.Path()), zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, fallback)
	}
}
