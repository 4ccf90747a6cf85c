package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpilot/internal/service"
)

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrPostNotFound), errors.Is(err, service.ErrAccountNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrPublishInProgress):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrNoActiveAccounts),
		errors.Is(err, service.ErrUnsupportedPlatform),
		errors.Is(err, service.ErrFlowExpired),
		errors.Is(err, service.ErrInvalidPost),
		errors.Is(err, service.ErrInvalidRequest):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// errorResponse writes {"error": ...}. Known service errors are shown as is;
// anything else is logged and replaced by fallback.
func errorResponse(c *fiber.Ctx, err error, fallback string) error {
	status := errorStatus(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		slog.Error(fallback, "error", message, "path", c.Path())
		message = fallback
	}
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
