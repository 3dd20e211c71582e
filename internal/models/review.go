package models

import (
	"time"

	"github.com/google/uuid"
)

// Review отзыв участника о второй стороне завершённого обмена
type Review struct {
	ID             uuid.UUID `json:"id"`
	ExchangeID     uuid.UUID `json:"exchange_id"`
	ReviewerID     uuid.UUID `json:"reviewer_id"`
	ReviewedUserID uuid.UUID `json:"reviewed_user_id"`
	Rating         int       `json:"rating"` // 1-5
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	Reviewer *User `json:"reviewer,omitempty"`
}

// UserReviews сводка отзывов о пользователе
type UserReviews struct {
	Reviews       []Review `json:"reviews"`
	AverageRating float64  `json:"average_rating"`
	TotalReviews  int      `json:"total_reviews"`
}
