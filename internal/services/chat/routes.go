package chat

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swapeco-api/internal/middleware"
)

// SetupRoutes настраивает маршруты чата обмена. Регистрируется до маршрутов
// обменов, чтобы проверка токена выполнялась один раз.
func (s *ChatService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/exchanges/:id/messages")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/", s.GetMessages)
	api.Post("/", s.SendMessage)
}
