package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swapeco-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)

	// Профиль требует авторизации
	app.Get("/api/profile", middleware.AuthMiddleware(s.jwtService), s.Profile)
}
