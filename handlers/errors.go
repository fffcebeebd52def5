package handlers

import (
	"errors"

	"vibeproof/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// parseBody decodes and validates a JSON body, writing the 400 itself.
// ok is false when the response has already been sent.
func parseBody(c *fiber.Ctx, out any) (ok bool, err error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON",
			"cause": err.Error(),
		})
	}
	if err := validate.Struct(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request",
			"cause": err.Error(),
		})
	}
	return true, nil
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrMissionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyCompleted):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrMissionNotActive):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, message string, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": message,
		"cause": err.Error(),
	})
}
