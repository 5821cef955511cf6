package api

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"

	"kwrec/internal/validation"
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

// modelNotLoaded is the response for queries before a model is published.
func modelNotLoaded(c fiber.Ctx) error {
	return jsonError(c, fiber.StatusServiceUnavailable, "model not loaded")
}

// decodeBody unmarshals and validates a JSON request body. On failure the
// error response has already been written and handled is true.
func decodeBody(c fiber.Ctx, dst any) (handled bool, err error) {
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return true, jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validation.Struct(dst); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return true, jsonError(c, fiber.StatusBadRequest, verr.Error())
		}
		return true, jsonError(c, fiber.StatusBadRequest, "invalid request")
	}
	return false, nil
}
