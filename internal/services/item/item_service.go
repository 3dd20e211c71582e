package item

import (
	"context"
	"errors"
	"log/slog"
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

// ImageStore удаляет загруженные изображения
type ImageStore interface {
	DestroyImages(ctx context.Context, publicIDs []string) error
}

// ItemService представляет сервис для работы с вещами
type ItemService struct {
	items      db.ItemRepository
	users      db.UserDirectory
	images     ImageStore
	jwtService *utils.JWTService
}

// NewItemService создает новый экземпляр ItemService
func NewItemService(items db.ItemRepository, users db.UserDirectory, images ImageStore, jwtService *utils.JWTService) *ItemService {
	return &ItemService{items: items, users: users, images: images, jwtService: jwtService}
}

// ItemInput тело запроса создания и обновления вещи. Статус вещи через API
// не меняется.
type ItemInput struct {
	Title       string             `json:"title" validate:"required,min=3,max=100"`
	Description string             `json:"description" validate:"max=2000"`
	Category    models.Category    `json:"category" validate:"required"`
	Condition   models.Condition   `json:"condition" validate:"required"`
	Images      []models.ItemImage `json:"images" validate:"max=3"`
	City        string             `json:"city" validate:"required,max=100"`
	PostalCode  string             `json:"postal_code" validate:"max=10"`
}

// ItemDetails карточка вещи
type ItemDetails struct {
	models.Item
	Owner   *models.User `json:"owner,omitempty"`
	IsOwner bool         `json:"is_owner"`
}

func (in *ItemInput) validate() error {
	if err := utils.Validate(in); err != nil {
		return err
	}
	if !in.Category.Valid() {
		return apperr.InvalidInput("Неизвестная категория")
	}
	if !in.Condition.Valid() {
		return apperr.InvalidInput("Неизвестное состояние вещи")
	}
	for _, img := range in.Images {
		if img.URL == "" {
			return apperr.InvalidInput("У изображения не указан URL")
		}
	}
	return nil
}

func (in *ItemInput) apply(item *models.Item) {
	item.Title = in.Title
	item.Description = in.Description
	item.Category = in.Category
	item.Condition = in.Condition
	item.Images = in.Images
	if item.Images == nil {
		item.Images = []models.ItemImage{}
	}
	item.City = in.City
	item.PostalCode = in.PostalCode
}

// CreateItem создает новую вещь в статусе available
func (s *ItemService) CreateItem(c fiber.Ctx) error {
	var in ItemInput
	if err := c.Bind().Body(&in); err != nil {
		return apperr.InvalidInput("Неверный формат данных")
	}
	if err := in.validate(); err != nil {
		return err
	}

	item := &models.Item{
		ID:      uuid.New(),
		OwnerID: middleware.UserID(c),
		Status:  models.ItemAvailable,
	}
	in.apply(item)

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.items.Create(ctx, item); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// GetItems возвращает доступные вещи с фильтрами и пагинацией
func (s *ItemService) GetItems(c fiber.Ctx) error {
	f := db.ItemFilter{
		Category: models.Category(c.Query("category")),
		City:     c.Query("city"),
		Query:    c.Query("q"),
		Limit:    defaultLimit,
	}

	if f.Category != "" && !f.Category.Valid() {
		return apperr.InvalidInput("Неизвестная категория")
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return apperr.InvalidInput("limit должен быть положительным числом")
		}
		f.Limit = min(limit, maxLimit)
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return apperr.InvalidInput("offset должен быть неотрицательным числом")
		}
		f.Offset = offset
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	items, total, err := s.items.ListAvailable(ctx, f)
	if err != nil {
		return err
	}
	if items == nil {
		items = []models.Item{}
	}

	return c.JSON(fiber.Map{
		"items":  items,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// GetMyItems возвращает все вещи пользователя независимо от статуса
func (s *ItemService) GetMyItems(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	items, err := s.items.ListByOwner(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	if items == nil {
		items = []models.Item{}
	}
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}

// GetItem возвращает карточку вещи и увеличивает счётчик просмотров
func (s *ItemService) GetItem(c fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.InvalidInput("Неверный формат ID вещи")
	}
	userID := middleware.UserID(c)

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return err
	}

	isOwner := item.OwnerID == userID
	if !isOwner {
		if err := s.items.IncrementViews(ctx, itemID); err != nil {
			slog.Error("can't increment item views", slog.String("item_id", itemID.String()), slog.Any("error", err))
		} else {
			item.ViewCount++
		}
	}

	owner, err := s.users.GetUser(ctx, item.OwnerID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}

	return c.JSON(ItemDetails{Item: *item, Owner: owner, IsOwner: isOwner})
}

// UpdateItem обновляет описание вещи, пока она доступна
func (s *ItemService) UpdateItem(c fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.InvalidInput("Неверный формат ID вещи")
	}

	var in ItemInput
	if err := c.Bind().Body(&in); err != nil {
		return apperr.InvalidInput("Неверный формат данных")
	}
	if err := in.validate(); err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := s.ownedItem(ctx, itemID, middleware.UserID(c))
	if err != nil {
		return err
	}

	removed := removedImages(item.Images, in.Images)
	in.apply(item)

	err = s.items.Update(ctx, item)
	if errors.Is(err, db.ErrItemNotAvailable) {
		return apperr.InvalidState("Редактировать можно только доступную вещь")
	}
	if err != nil {
		return err
	}

	s.destroyImages(removed)
	return c.JSON(item)
}

// DeleteItem удаляет вещь, не участвующую в ожидающих и принятых обменах
func (s *ItemService) DeleteItem(c fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.InvalidInput("Неверный формат ID вещи")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	item, err := s.ownedItem(ctx, itemID, middleware.UserID(c))
	if err != nil {
		return err
	}

	err = s.items.Delete(ctx, itemID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return apperr.NotFound("Вещь не найдена")
	case errors.Is(err, db.ErrItemNotAvailable):
		return apperr.Conflict("Вещь зарезервирована или уже обменяна")
	case errors.Is(err, db.ErrItemInUse):
		return apperr.Conflict("Вещь участвует в ожидающем предложении обмена")
	case err != nil:
		return err
	}

	s.destroyImages(item.Images)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Вещь успешно удалена",
	})
}

func (s *ItemService) getItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := s.items.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Вещь не найдена")
	}
	return item, err
}

func (s *ItemService) ownedItem(ctx context.Context, id, userID uuid.UUID) (*models.Item, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != userID {
		return nil, apperr.Forbidden("Вы не являетесь владельцем этой вещи")
	}
	return item, nil
}

// destroyImages удаляет изображения после фиксации изменений; ошибки логирует
// сам ImageStore
func (s *ItemService) destroyImages(images []models.ItemImage) {
	if s.images == nil || len(images) == 0 {
		return
	}

	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.PublicID)
	}

	ctx, cancel := db.GetContext()
	defer cancel()
	_ = s.images.DestroyImages(ctx, ids)
}

func removedImages(before, after []models.ItemImage) []models.ItemImage {
	kept := make(map[string]bool, len(after))
	for _, img := range after {
		kept[img.PublicID] = true
	}

	var removed []models.ItemImage
	for _, img := range before {
		if img.PublicID != "" && !kept[img.PublicID] {
			removed = append(removed, img)
		}
	}
	return removed
}
