package exchange

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
	"github.com/rajivgeraev/swapeco-api/internal/db"
	"github.com/rajivgeraev/swapeco-api/internal/middleware"
	"github.com/rajivgeraev/swapeco-api/internal/utils"
)

// Handler HTTP API обменов и отзывов
type Handler struct {
	svc        Service
	jwtService *utils.JWTService
}

// NewHandler создает новый экземпляр Handler
func NewHandler(svc Service, jwtService *utils.JWTService) *Handler {
	return &Handler{svc: svc, jwtService: jwtService}
}

var errInvalidBody = apperr.InvalidInput("Неверный формат данных")

// CreateExchange создает предложение обмена
func (h *Handler) CreateExchange(c fiber.Ctx) error {
	var in CreateInput
	if err := c.Bind().Body(&in); err != nil {
		return errInvalidBody
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	view, err := h.svc.Create(ctx, middleware.UserID(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// GetMyExchanges возвращает отправленные, полученные или все обмены пользователя
func (h *Handler) GetMyExchanges(c fiber.Ctx) error {
	role, err := ParseRole(c.Query("type"))
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	views, err := h.svc.FindByUser(ctx, middleware.UserID(c), role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"exchanges": views, "count": len(views)})
}

// GetPendingCount возвращает число входящих ожидающих предложений
func (h *Handler) GetPendingCount(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	count, err := h.svc.CountPending(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": count})
}

func (h *Handler) GetExchange(c fiber.Ctx) error {
	exchangeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	view, err := h.svc.FindByID(ctx, exchangeID, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// RespondExchange принимает или отклоняет предложение
func (h *Handler) RespondExchange(c fiber.Ctx) error {
	exchangeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var in RespondInput
	if err := c.Bind().Body(&in); err != nil {
		return errInvalidBody
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	view, err := h.svc.Respond(ctx, exchangeID, middleware.UserID(c), in)
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *Handler) CancelExchange(c fiber.Ctx) error {
	exchangeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	view, err := h.svc.Cancel(ctx, exchangeID, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

func (h *Handler) CompleteExchange(c fiber.Ctx) error {
	exchangeID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	view, err := h.svc.Complete(ctx, exchangeID, middleware.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(view)
}

// CreateReview оставляет отзыв о второй стороне завершённого обмена
func (h *Handler) CreateReview(c fiber.Ctx) error {
	var in ReviewInput
	if err := c.Bind().Body(&in); err != nil {
		return errInvalidBody
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	review, err := h.svc.CreateReview(ctx, middleware.UserID(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

// GetUserReviews публичный список отзывов о пользователе
func (h *Handler) GetUserReviews(c fiber.Ctx) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	reviews, err := h.svc.UserReviews(ctx, userID)
	if err != nil {
		return err
	}
	return c.JSON(reviews)
}

func paramID(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("Неверный формат параметра " + name)
	}
	return id, nil
}
