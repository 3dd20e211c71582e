package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus статус доступности вещи
type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemReserved  ItemStatus = "reserved"
	ItemExchanged ItemStatus = "exchanged"
)

// Category категория вещи
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryFurniture   Category = "furniture"
	CategoryBooks       Category = "books"
	CategorySports      Category = "sports"
	CategoryToys        Category = "toys"
	CategoryOther       Category = "other"
)

// Condition состояние вещи
type Condition string

const (
	ConditionNew      Condition = "new"
	ConditionVeryGood Condition = "very_good"
	ConditionGood     Condition = "good"
	ConditionFair     Condition = "fair"
)

// MaxItemImages максимальное количество фотографий у вещи
const MaxItemImages = 3

var validCategories = map[Category]bool{
	CategoryElectronics: true, CategoryClothing: true, CategoryFurniture: true,
	CategoryBooks: true, CategorySports: true, CategoryToys: true, CategoryOther: true,
}

var validConditions = map[Condition]bool{
	ConditionNew: true, ConditionVeryGood: true, ConditionGood: true, ConditionFair: true,
}

func (c Category) Valid() bool  { return validCategories[c] }
func (c Condition) Valid() bool { return validConditions[c] }

// Item представляет вещь, выставленную на обмен
type Item struct {
	ID          uuid.UUID   `json:"id"`
	OwnerID     uuid.UUID   `json:"owner_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    Category    `json:"category"`
	Condition   Condition   `json:"condition"`
	Images      []ItemImage `json:"images"`
	City        string      `json:"city"`
	PostalCode  string      `json:"postal_code"`
	ViewCount   int         `json:"view_count"`
	Status      ItemStatus  `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ItemImage изображение вещи, загруженное в Cloudinary
type ItemImage struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id,omitempty"`
}

// ItemSummary сокращённое представление вещи для списков обменов
type ItemSummary struct {
	ID        uuid.UUID   `json:"id"`
	Title     string      `json:"title"`
	Category  Category    `json:"category"`
	Condition Condition   `json:"condition"`
	Images    []ItemImage `json:"images"`
	Status    ItemStatus  `json:"status"`
}

// Summary возвращает сокращённое представление вещи
func (i *Item) Summary() *ItemSummary {
	return &ItemSummary{
		ID:        i.ID,
		Title:     i.Title,
		Category:  i.Category,
		Condition: i.Condition,
		Images:    i.Images,
		Status:    i.Status,
	}
}
