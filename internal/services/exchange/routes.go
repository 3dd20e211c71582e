package exchange

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/swapeco-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (h *Handler) SetupRoutes(app *fiber.App) {
	// Публичный маршрут регистрируется до middleware группы
	app.Get("/api/exchanges/reviews/user/:userId", h.GetUserReviews)

	api := app.Group("/api/exchanges")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(h.jwtService))

	api.Post("/", h.CreateExchange)
	api.Get("/", h.GetMyExchanges)
	api.Get("/pending/count", h.GetPendingCount)
	api.Post("/reviews", h.CreateReview)
	api.Get("/:id", h.GetExchange)
	api.Patch("/:id/respond", h.RespondExchange)
	api.Patch("/:id/cancel", h.CancelExchange)
	api.Patch("/:id/complete", h.CompleteExchange)
}
