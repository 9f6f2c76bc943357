package utils

import (
	apperrors "loyalty/internal/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Respond sends a JSON response with the given status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

// BadRequest sends a JSON error response with status 400.
func BadRequest(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusBadRequest, fiber.Map{"error": message})
}

// Unauthorized sends a JSON error response with status 401.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusUnauthorized, fiber.Map{"error": message})
}

// InternalError sends a JSON error response with status 500.
func InternalError(c *fiber.Ctx, message string) error {
	return Respond(c, fiber.StatusInternalServerError, fiber.Map{"error": message})
}

// StatusFor maps a domain error kind onto an HTTP status.
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindConflict, apperrors.KindTokenAlreadyUsed:
		return fiber.StatusConflict
	case apperrors.KindBadRequest:
		return fiber.StatusBadRequest
	case apperrors.KindUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// Error sends err as a JSON error response. Domain errors carry their code;
// anything else is logged and reported as a 500 without details.
func Error(c *fiber.Ctx, err error) error {
	de, ok := apperrors.As(err)
	if !ok {
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
		return InternalError(c, "internal server error")
	}
	return Respond(c, StatusFor(de.Kind), fiber.Map{"error": de.Message, "code": de.Code})
}
