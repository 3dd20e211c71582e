// Package notify доставляет пользовательские события между экземплярами API
// через PostgreSQL LISTEN/NOTIFY.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel канал PostgreSQL для событий
const Channel = "exchange_events"

// Типы событий
const (
	TypeExchangeUpdated = "exchange_updated"
	TypePendingCount    = "pending_count"
	TypeNewMessage      = "new_message"
	TypeMessagesRead    = "messages_read"
	TypeTyping          = "typing"
	TypeStopTyping      = "stop_typing"
)

// Event событие, адресованное всем соединениям одного пользователя
type Event struct {
	UserID    uuid.UUID       `json:"user_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent собирает событие, сериализуя payload
func NewEvent(userID uuid.UUID, typ string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("can't marshal %s payload: %w", typ, err)
	}
	return Event{UserID: userID, Type: typ, Payload: raw, Timestamp: time.Now()}, nil
}

// ExchangeUpdated payload события exchange_updated
type ExchangeUpdated struct {
	ExchangeID uuid.UUID `json:"exchange_id"`
	Status     string    `json:"status"`
}

// PendingCount payload события pending_count
type PendingCount struct {
	Count int `json:"count"`
}

// Publisher отправляет события через pg_notify
type Publisher struct {
	Pool *pgxpool.Pool
}

func (p *Publisher) Publish(ctx context.Context, events ...Event) error {
	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("can't marshal event: %w", err)
		}

		if _, err := p.Pool.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, string(raw)); err != nil {
			return fmt.Errorf("can't notify %s: %w", ev.Type, err)
		}
	}
	return nil
}
