package favorite

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
	"github.com/rajivgeraev/swapeco-api/internal/db"
	"github.com/rajivgeraev/swapeco-api/internal/middleware"
	"github.com/rajivgeraev/swapeco-api/internal/models"
	"github.com/rajivgeraev/swapeco-api/internal/utils"
)

const (
	defaultLimit = 20
	maxLimit     = 50
)

// FavoriteService представляет сервис для работы с избранными вещами
type FavoriteService struct {
	favorites  db.FavoriteRepository
	items      db.ItemRepository
	jwtService *utils.JWTService
}

// NewFavoriteService создает новый экземпляр FavoriteService
func NewFavoriteService(favorites db.FavoriteRepository, items db.ItemRepository, jwtService *utils.JWTService) *FavoriteService {
	return &FavoriteService{favorites: favorites, items: items, jwtService: jwtService}
}

type addRequest struct {
	ItemID uuid.UUID `json:"item_id" validate:"required"`
}

// AddToFavorites добавляет вещь в избранное
func (s *FavoriteService) AddToFavorites(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req addRequest
	if err := c.Bind().Body(&req); err != nil {
		return apperr.InvalidInput("Неверный формат данных")
	}
	if err := utils.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Проверяем, что вещь существует и доступна
	item, err := s.items.Get(ctx, req.ItemID)
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Вещь не найдена")
	}
	if err != nil {
		return err
	}
	if item.Status != models.ItemAvailable {
		return apperr.InvalidState("Вещь недоступна для обмена")
	}
	if item.OwnerID == userID {
		return apperr.InvalidInput("Нельзя добавить в избранное свою вещь")
	}

	fav := &models.Favorite{ID: uuid.New(), UserID: userID, ItemID: req.ItemID}
	err = s.favorites.Add(ctx, fav)
	if errors.Is(err, db.ErrDuplicate) {
		return apperr.Conflict("Вещь уже добавлена в избранное")
	}
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"id":      fav.ID,
		"message": "Вещь успешно добавлена в избранное",
	})
}

// RemoveFromFavorites удаляет вещь из избранного
func (s *FavoriteService) RemoveFromFavorites(c fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.InvalidInput("Неверный формат ID вещи")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	removed, err := s.favorites.Remove(ctx, middleware.UserID(c), itemID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("Вещь не найдена в избранном")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Вещь успешно удалена из избранного",
	})
}

// GetFavorites возвращает список избранных вещей пользователя
func (s *FavoriteService) GetFavorites(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultLimit)))
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	favorites, total, err := s.favorites.List(ctx, middleware.UserID(c), limit, offset)
	if err != nil {
		return err
	}
	if favorites == nil {
		favorites = []models.Favorite{}
	}

	return c.JSON(models.FavoriteResponse{
		Favorites: favorites,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// CheckFavorite проверяет, добавлена ли вещь в избранное
func (s *FavoriteService) CheckFavorite(c fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.InvalidInput("Неверный формат ID вещи")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	exists, err := s.favorites.Exists(ctx, middleware.UserID(c), itemID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"is_favorite": exists})
}
