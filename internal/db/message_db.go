package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/swapeco-api/internal/models"
)

type MessageRepository interface {
	Insert(ctx context.Context, msg *models.Message) error
	// List возвращает до limit сообщений, созданных раньше before, новые первыми.
	// Нулевой before означает "с самого нового".
	List(ctx context.Context, exchangeID uuid.UUID, before time.Time, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, exchangeID, readerID uuid.UUID) (int64, error)
}

// MessageDatabase реализация MessageRepository поверх PostgreSQL
type MessageDatabase struct {
	Pool *pgxpool.Pool
}

func (d *MessageDatabase) Insert(ctx context.Context, msg *models.Message) error {
	err := d.Pool.QueryRow(ctx, `
		INSERT INTO exchange_messages (id, exchange_id, sender_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, msg.ID, msg.ExchangeID, msg.SenderID, msg.Text).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("can't insert message: %w", err)
	}
	return nil
}

func (d *MessageDatabase) List(ctx context.Context, exchangeID uuid.UUID, before time.Time, limit int) ([]models.Message, error) {
	if before.IsZero() {
		before = time.Now().Add(time.Hour)
	}

	rows, err := d.Pool.Query(ctx, `
		SELECT id, exchange_id, sender_id, text, is_read, created_at
		FROM exchange_messages
		WHERE exchange_id = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, exchangeID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("can't query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ExchangeID, &m.SenderID, &m.Text, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("can't scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over messages: %w", err)
	}
	return messages, nil
}

// MarkRead отмечает прочитанными сообщения собеседника
func (d *MessageDatabase) MarkRead(ctx context.Context, exchangeID, readerID uuid.UUID) (int64, error) {
	tag, err := d.Pool.Exec(ctx, `
		UPDATE exchange_messages
		SET is_read = TRUE
		WHERE exchange_id = $1 AND sender_id <> $2 AND is_read = FALSE
	`, exchangeID, readerID)
	if err != nil {
		return 0, fmt.Errorf("can't mark messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}
