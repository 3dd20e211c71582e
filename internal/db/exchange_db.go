package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rajivgeraev/swapeco-api/internal/models"
)

var (
	// ErrDuplicate нарушено уникальное ограничение (ожидающее предложение или отзыв)
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleExchange статус обмена изменился после чтения
	ErrStaleExchange = errors.New("exchange status changed concurrently")
	// ErrConcurrentUpdate транзакция проиграла гонку и была прервана базой
	ErrConcurrentUpdate = errors.New("concurrent update")
)

// ExchangeRole фильтр списка обменов по роли пользователя
type ExchangeRole string

const (
	RoleAny      ExchangeRole = ""
	RoleSent     ExchangeRole = "sent"
	RoleReceived ExchangeRole = "received"
)

// ExchangeStore хранилище обменов и отзывов. Все изменения выполняются
// через ExchangeTx внутри WithTx.
type ExchangeStore interface {
	WithTx(ctx context.Context, fn func(tx ExchangeTx) error) error
	Get(ctx context.Context, id uuid.UUID) (*models.Exchange, error)
	ListByUser(ctx context.Context, userID uuid.UUID, role ExchangeRole) ([]models.Exchange, error)
	CountPending(ctx context.Context, receiverID uuid.UUID) (int, error)
	ReviewsForUser(ctx context.Context, userID uuid.UUID) ([]models.Review, error)
}

// ExchangeTx операции, выполняемые в одной транзакции
type ExchangeTx interface {
	// LoadItems читает вещи и блокирует их от изменения статуса до конца транзакции
	LoadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error)
	HasPending(ctx context.Context, proposerID, requestedItemID uuid.UUID) (bool, error)
	Insert(ctx context.Context, ex *models.Exchange) error
	// GetForUpdate читает обмен с блокировкой строки
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Exchange, error)
	// Update сохраняет обмен, только если его статус всё ещё from
	Update(ctx context.Context, ex *models.Exchange, from models.ExchangeStatus) error
	// SetItemsStatus переводит вещи из from в to и возвращает число изменённых строк
	SetItemsStatus(ctx context.Context, ids []uuid.UUID, from, to models.ItemStatus) (int, error)
	HasReview(ctx context.Context, exchangeID, reviewerID uuid.UUID) (bool, error)
	InsertReview(ctx context.Context, r *models.Review) error
}

const exchangeColumns = `e.id, e.proposer_id, e.receiver_id, e.requested_item_id, e.status,
	e.message, e.response_message, e.responded_at, e.completed_at, e.created_at, e.updated_at,
	ARRAY(SELECT o.item_id FROM exchange_offered_items o WHERE o.exchange_id = e.id ORDER BY o.position)`

// ExchangeDatabase реализация ExchangeStore поверх PostgreSQL
type ExchangeDatabase struct {
	Pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewExchangeDatabase(pool *pgxpool.Pool) *ExchangeDatabase {
	return &ExchangeDatabase{
		Pool:   pool,
		tracer: otel.Tracer("swapeco/db/exchanges"),
	}
}

// WithTx выполняет fn в транзакции READ COMMITTED. Согласованность обеспечивают
// блокировки строк и условия на статус в UPDATE.
func (d *ExchangeDatabase) WithTx(ctx context.Context, fn func(tx ExchangeTx) error) error {
	ctx, span := d.tracer.Start(ctx, "exchanges.tx")
	defer span.End()

	err := WithTx(ctx, d.Pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&exchangeTx{tx: tx, span: span})
	})
	if IsConcurrentUpdate(err) {
		err = fmt.Errorf("%w: %w", ErrConcurrentUpdate, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (d *ExchangeDatabase) Get(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	ex, err := scanExchange(d.Pool.QueryRow(ctx, `
		SELECT `+exchangeColumns+` FROM exchanges e WHERE e.id = $1
	`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return ex, nil
}

func (d *ExchangeDatabase) ListByUser(ctx context.Context, userID uuid.UUID, role ExchangeRole) ([]models.Exchange, error) {
	var where string
	switch role {
	case RoleSent:
		where = "e.proposer_id = $1"
	case RoleReceived:
		where = "e.receiver_id = $1"
	default:
		where = "(e.proposer_id = $1 OR e.receiver_id = $1)"
	}

	rows, err := d.Pool.Query(ctx, `
		SELECT `+exchangeColumns+`
		FROM exchanges e
		WHERE `+where+`
		ORDER BY e.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("can't query exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []models.Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan exchange: %w", err)
		}
		exchanges = append(exchanges, *ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over exchanges: %w", err)
	}
	return exchanges, nil
}

func (d *ExchangeDatabase) CountPending(ctx context.Context, receiverID uuid.UUID) (int, error) {
	var count int
	err := d.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM exchanges WHERE receiver_id = $1 AND status = 'pending'
	`, receiverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("can't count pending exchanges: %w", err)
	}
	return count, nil
}

func (d *ExchangeDatabase) ReviewsForUser(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT id, exchange_id, reviewer_id, reviewed_user_id, rating, comment, created_at
		FROM reviews
		WHERE reviewed_user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("can't query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.ExchangeID, &r.ReviewerID, &r.ReviewedUserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("can't scan review: %w", err)
		}
		reviews = append(reviews, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over reviews: %w", err)
	}
	return reviews, nil
}

type exchangeTx struct {
	tx   pgx.Tx
	span trace.Span
}

func (t *exchangeTx) LoadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	return itemsByID(ctx, t.tx, ids, "AND deleted_at IS NULL FOR SHARE")
}

func (t *exchangeTx) HasPending(ctx context.Context, proposerID, requestedItemID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM exchanges
			WHERE proposer_id = $1 AND requested_item_id = $2 AND status = 'pending'
		)
	`, proposerID, requestedItemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("can't check pending exchanges: %w", err)
	}
	return exists, nil
}

func (t *exchangeTx) Insert(ctx context.Context, ex *models.Exchange) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO exchanges (id, proposer_id, receiver_id, requested_item_id, status, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, ex.ID, ex.ProposerID, ex.ReceiverID, ex.RequestedItemID, ex.Status, ex.Message).
		Scan(&ex.CreatedAt, &ex.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("can't insert exchange: %w", err)
	}

	batch := &pgx.Batch{}
	for i, itemID := range ex.OfferedItemIDs {
		batch.Queue(`
			INSERT INTO exchange_offered_items (exchange_id, item_id, position) VALUES ($1, $2, $3)
		`, ex.ID, itemID, i)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("can't insert offered items: %w", err)
	}

	t.span.SetAttributes(attribute.String("exchange.id", ex.ID.String()))
	return nil
}

func (t *exchangeTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	ex, err := scanExchange(t.tx.QueryRow(ctx, `
		SELECT `+exchangeColumns+` FROM exchanges e WHERE e.id = $1 FOR UPDATE OF e
	`, id))
	if err != nil {
		return nil, mapError(err)
	}

	t.span.SetAttributes(
		attribute.String("exchange.id", ex.ID.String()),
		attribute.String("exchange.status.from", string(ex.Status)),
	)
	return ex, nil
}

func (t *exchangeTx) Update(ctx context.Context, ex *models.Exchange, from models.ExchangeStatus) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE exchanges
		SET status = $1, response_message = $2, responded_at = $3, completed_at = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6
		RETURNING updated_at
	`, ex.Status, ex.ResponseMessage, ex.RespondedAt, ex.CompletedAt, ex.ID, from).Scan(&ex.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleExchange
	}
	if err != nil {
		return fmt.Errorf("can't update exchange: %w", err)
	}

	t.span.SetAttributes(attribute.String("exchange.status.to", string(ex.Status)))
	return nil
}

func (t *exchangeTx) SetItemsStatus(ctx context.Context, ids []uuid.UUID, from, to models.ItemStatus) (int, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE items SET status = $1, updated_at = NOW()
		WHERE id = ANY($2) AND status = $3
	`, to, ids, from)
	if err != nil {
		return 0, fmt.Errorf("can't update items status: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (t *exchangeTx) HasReview(ctx context.Context, exchangeID, reviewerID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE exchange_id = $1 AND reviewer_id = $2)
	`, exchangeID, reviewerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("can't check reviews: %w", err)
	}
	return exists, nil
}

func (t *exchangeTx) InsertReview(ctx context.Context, r *models.Review) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO reviews (id, exchange_id, reviewer_id, reviewed_user_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, r.ID, r.ExchangeID, r.ReviewerID, r.ReviewedUserID, r.Rating, r.Comment).Scan(&r.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("can't insert review: %w", err)
	}
	return nil
}

func scanExchange(row pgx.Row) (*models.Exchange, error) {
	var ex models.Exchange
	err := row.Scan(
		&ex.ID,
		&ex.ProposerID,
		&ex.ReceiverID,
		&ex.RequestedItemID,
		&ex.Status,
		&ex.Message,
		&ex.ResponseMessage,
		&ex.RespondedAt,
		&ex.CompletedAt,
		&ex.CreatedAt,
		&ex.UpdatedAt,
		&ex.OfferedItemIDs,
	)
	if err != nil {
		return nil, err
	}
	return &ex, nil
}
