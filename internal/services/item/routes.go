package item

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swapeco-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API вещей
func (s *ItemService) SetupRoutes(app *fiber.App) {
	// Публичный список доступных вещей
	app.Get("/api/items", s.GetItems)

	api := app.Group("/api/items")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/", s.CreateItem)
	api.Get("/mine", s.GetMyItems)
	api.Get("/:id", s.GetItem)
	api.Put("/:id", s.UpdateItem)
	api.Patch("/:id", s.UpdateItem)
	api.Delete("/:id", s.DeleteItem)
}
