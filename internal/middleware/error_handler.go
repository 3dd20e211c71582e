package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
)

// ErrorHandler переводит ошибки обработчиков в JSON ответ {"error": "..."}
func ErrorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	code := apperr.HTTPStatus(err)
	if code == fiber.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err))
	}

	return c.Status(code).JSON(fiber.Map{"error": apperr.PublicMessage(err)})
}
