package cloudinary

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swapeco-api/internal/middleware"
)

// SetupRoutes настраивает маршрут подписи загрузки
func (s *CloudinaryService) SetupRoutes(app *fiber.App) {
	app.Get("/api/upload/params", middleware.AuthMiddleware(s.jwtService), s.GenerateUploadParams)
}
