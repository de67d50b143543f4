package server

import (
	"errors"
	"strings"

	"quadra/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseUUID extracts a route parameter by name as a uuid.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// The error message is derived from the parameter name ("id" -> "Invalid ID",
// "commentId" -> "Invalid comment ID").
func parseUUID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil || id == uuid.Nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(invalidIDMessage(param)))
		return uuid.Nil, errResponseWritten
	}
	return id, nil
}

func invalidIDMessage(param string) string {
	if param == "id" {
		return "Invalid ID"
	}
	name := strings.TrimSuffix(param, "Id")
	return "Invalid " + strings.ToLower(name) + " ID"
}

// parseBody decodes the request body into dst, writing a 400 on failure.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// respondError renders err with the status derived from its code.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// userMessage returns the user-facing text of err.
func userMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Erro inesperado. Tente novamente."
}
