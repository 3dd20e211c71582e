package models

import (
	"time"

	"github.com/google/uuid"
)

// ExchangeStatus статус предложения обмена
type ExchangeStatus string

const (
	ExchangePending   ExchangeStatus = "pending"
	ExchangeAccepted  ExchangeStatus = "accepted"
	ExchangeRefused   ExchangeStatus = "refused"
	ExchangeCancelled ExchangeStatus = "cancelled"
	ExchangeCompleted ExchangeStatus = "completed"
)

// ExchangeStatuses перечисляет все статусы обмена
var ExchangeStatuses = []ExchangeStatus{
	ExchangePending, ExchangeAccepted, ExchangeRefused, ExchangeCancelled, ExchangeCompleted,
}

// IsTerminal сообщает, что из статуса больше нет переходов
func (s ExchangeStatus) IsTerminal() bool {
	return s == ExchangeRefused || s == ExchangeCancelled || s == ExchangeCompleted
}

// Exchange представляет предложение обмена. Хранит только идентификаторы
// связанных сущностей, отображаемые данные собираются в ExchangeView.
type Exchange struct {
	ID              uuid.UUID      `json:"id"`
	ProposerID      uuid.UUID      `json:"proposer_id"`
	ReceiverID      uuid.UUID      `json:"receiver_id"`
	OfferedItemIDs  []uuid.UUID    `json:"offered_item_ids"`
	RequestedItemID uuid.UUID      `json:"requested_item_id"`
	Status          ExchangeStatus `json:"status"`
	Message         string         `json:"message,omitempty"`
	ResponseMessage string         `json:"response_message,omitempty"`
	RespondedAt     *time.Time     `json:"responded_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ItemIDs возвращает все вещи, участвующие в обмене
func (e *Exchange) ItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(e.OfferedItemIDs)+1)
	ids = append(ids, e.OfferedItemIDs...)
	return append(ids, e.RequestedItemID)
}

// IsParticipant проверяет, что пользователь - одна из сторон обмена
func (e *Exchange) IsParticipant(userID uuid.UUID) bool {
	return e.ProposerID == userID || e.ReceiverID == userID
}

// Counterpart возвращает вторую сторону обмена
func (e *Exchange) Counterpart(userID uuid.UUID) uuid.UUID {
	if e.ProposerID == userID {
		return e.ReceiverID
	}
	return e.ProposerID
}

// ExchangeView представление обмена для API
type ExchangeView struct {
	Exchange

	// Данные, подгружаемые для отображения (заполняются не всегда)
	Proposer      *User          `json:"proposer,omitempty"`
	Receiver      *User          `json:"receiver,omitempty"`
	OfferedItems  []*ItemSummary `json:"offered_items"`
	RequestedItem *ItemSummary   `json:"requested_item,omitempty"`
}
