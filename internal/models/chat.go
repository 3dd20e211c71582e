package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength максимальная длина сообщения в чате обмена
const MaxMessageLength = 1000

// Message представляет сообщение в чате обмена
type Message struct {
	ID         uuid.UUID `json:"id"`
	ExchangeID uuid.UUID `json:"exchange_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	Text       string    `json:"text"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`

	// Дополнительные поля для API
	Sender *User `json:"sender,omitempty"`
}
