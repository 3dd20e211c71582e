package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
	"github.com/rajivgeraev/swapeco-api/internal/db"
	"github.com/rajivgeraev/swapeco-api/internal/models"
	"github.com/rajivgeraev/swapeco-api/internal/notify"
	"github.com/rajivgeraev/swapeco-api/internal/utils"
)

// Service жизненный цикл предложений обмена
type Service interface {
	Create(ctx context.Context, proposerID uuid.UUID, in CreateInput) (*models.ExchangeView, error)
	Respond(ctx context.Context, exchangeID, callerID uuid.UUID, in RespondInput) (*models.ExchangeView, error)
	Cancel(ctx context.Context, exchangeID, callerID uuid.UUID) (*models.ExchangeView, error)
	Complete(ctx context.Context, exchangeID, callerID uuid.UUID) (*models.ExchangeView, error)
	CreateReview(ctx context.Context, reviewerID uuid.UUID, in ReviewInput) (*models.Review, error)
	FindByUser(ctx context.Context, userID uuid.UUID, role db.ExchangeRole) ([]models.ExchangeView, error)
	FindByID(ctx context.Context, exchangeID, callerID uuid.UUID) (*models.ExchangeView, error)
	CountPending(ctx context.Context, userID uuid.UUID) (int, error)
	UserReviews(ctx context.Context, userID uuid.UUID) (*models.UserReviews, error)
}

// Notifier публикует события после фиксации изменений
type Notifier interface {
	Publish(ctx context.Context, events ...notify.Event) error
}

type CreateInput struct {
	OfferedItemIDs  []uuid.UUID `json:"offered_item_ids" validate:"required,min=1"`
	RequestedItemID uuid.UUID   `json:"requested_item_id" validate:"required"`
	Message         string      `json:"message" validate:"max=500"`
}

type RespondInput struct {
	Response Action `json:"response" validate:"oneof=accept refuse"`
	Message  string `json:"message" validate:"max=500"`
}

type ReviewInput struct {
	ExchangeID uuid.UUID `json:"exchange_id" validate:"required"`
	Rating     int       `json:"rating" validate:"min=1,max=5"`
	Comment    string    `json:"comment" validate:"max=500"`
}

var (
	errExchangeNotFound  = apperr.NotFound("Обмен не найден")
	errDuplicateProposal = apperr.Conflict("Вы уже предложили обмен на эту вещь")
	errConcurrentUpdate  = apperr.Conflict("Обмен изменён параллельно, повторите запрос")
)

// ExchangeGeneric реализация Service с основной логикой. Логирование,
// кэширование и лимиты добавляются обёртками из exchange_*.go.
type ExchangeGeneric struct {
	Exchanges db.ExchangeStore
	Items     db.ItemRepository
	Users     db.UserDirectory
	Notifier  Notifier
	Now       func() time.Time

	transitions metric.Int64Counter
}

func NewGeneric(exchanges db.ExchangeStore, items db.ItemRepository, users db.UserDirectory, notifier Notifier) *ExchangeGeneric {
	counter, err := otel.Meter("swapeco/exchange").Int64Counter(
		"exchange.transitions",
		metric.WithDescription("Committed exchange status transitions"),
	)
	if err != nil {
		slog.Error("can't create transitions counter", slog.Any("error", err))
	}

	return &ExchangeGeneric{
		Exchanges:   exchanges,
		Items:       items,
		Users:       users,
		Notifier:    notifier,
		Now:         time.Now,
		transitions: counter,
	}
}

func (g *ExchangeGeneric) Create(ctx context.Context, proposerID uuid.UUID, in CreateInput) (*models.ExchangeView, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	ex := &models.Exchange{
		ID:              uuid.New(),
		ProposerID:      proposerID,
		OfferedItemIDs:  in.OfferedItemIDs,
		RequestedItemID: in.RequestedItemID,
		Status:          models.ExchangePending,
		Message:         in.Message,
	}

	err := g.Exchanges.WithTx(ctx, func(tx db.ExchangeTx) error {
		ids := make([]uuid.UUID, 0, len(in.OfferedItemIDs)+1)
		ids = append(ids, in.RequestedItemID)
		ids = append(ids, in.OfferedItemIDs...)

		items, err := tx.LoadItems(ctx, ids)
		if err != nil {
			return err
		}

		requested, ok := items[in.RequestedItemID]
		if !ok {
			return apperr.NotFound("Запрашиваемая вещь не найдена")
		}
		if requested.Status != models.ItemAvailable {
			return apperr.InvalidState("Запрашиваемая вещь больше недоступна")
		}
		if requested.OwnerID == proposerID {
			return apperr.InvalidInput("Нельзя предложить обмен самому себе")
		}
		if !offeredItemsValid(items, in.OfferedItemIDs, proposerID) {
			return apperr.InvalidInput("Предлагаемые вещи не найдены, не принадлежат вам или недоступны")
		}

		pending, err := tx.HasPending(ctx, proposerID, in.RequestedItemID)
		if err != nil {
			return err
		}
		if pending {
			return errDuplicateProposal
		}

		ex.ReceiverID = requested.OwnerID
		return tx.Insert(ctx, ex)
	})
	if err != nil {
		return nil, storeError(err)
	}

	g.recordTransition(ctx, "create", ex.Status)
	g.publish(ctx, ex, true)

	return g.committedView(ctx, ex), nil
}

// offeredItemsValid требует, чтобы каждый ID встречался один раз и указывал
// на доступную вещь инициатора
func offeredItemsValid(items map[uuid.UUID]*models.Item, offered []uuid.UUID, proposerID uuid.UUID) bool {
	seen := make(map[uuid.UUID]bool, len(offered))
	for _, id := range offered {
		if seen[id] {
			return false
		}
		seen[id] = true

		item, ok := items[id]
		if !ok || item.OwnerID != proposerID || item.Status != models.ItemAvailable {
			return false
		}
	}
	return true
}

func (g *ExchangeGeneric) Respond(ctx context.Context, exchangeID, callerID uuid.UUID, in RespondInput) (*models.ExchangeView, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	ex, err := g.transition(ctx, exchangeID, callerID, in.Response, func(ex *models.Exchange, now time.Time) {
		ex.ResponseMessage = in.Message
		ex.RespondedAt = &now
	})
	if err != nil {
		return nil, err
	}
	return g.committedView(ctx, ex), nil
}

func (g *ExchangeGeneric) Cancel(ctx context.Context, exchangeID, callerID uuid.UUID) (*models.ExchangeView, error) {
	ex, err := g.transition(ctx, exchangeID, callerID, ActionCancel, nil)
	if err != nil {
		return nil, err
	}
	return g.committedView(ctx, ex), nil
}

func (g *ExchangeGeneric) Complete(ctx context.Context, exchangeID, callerID uuid.UUID) (*models.ExchangeView, error) {
	ex, err := g.transition(ctx, exchangeID, callerID, ActionComplete, func(ex *models.Exchange, now time.Time) {
		ex.CompletedAt = &now
	})
	if err != nil {
		return nil, err
	}
	return g.committedView(ctx, ex), nil
}

// transition выполняет действие над обменом в одной транзакции: блокирует
// строку обмена, проверяет роль и статус, меняет статусы вещей с условием
// на текущий статус и сохраняет обмен
func (g *ExchangeGeneric) transition(
	ctx context.Context,
	exchangeID, callerID uuid.UUID,
	action Action,
	apply func(ex *models.Exchange, now time.Time),
) (*models.Exchange, error) {
	var ex *models.Exchange
	var from models.ExchangeStatus

	err := g.Exchanges.WithTx(ctx, func(tx db.ExchangeTx) error {
		var err error
		ex, err = tx.GetForUpdate(ctx, exchangeID)
		if errors.Is(err, db.ErrNotFound) {
			return errExchangeNotFound
		}
		if err != nil {
			return err
		}

		from = ex.Status
		t, err := Step(from, action, RoleOf(ex, callerID))
		if err != nil {
			return err
		}

		if itemFrom, itemTo, ok := t.Effect.ItemStatuses(); ok {
			ids := ex.ItemIDs()
			n, err := tx.SetItemsStatus(ctx, ids, itemFrom, itemTo)
			if err != nil {
				return err
			}
			if n != len(ids) {
				if t.Effect == EffectReserve {
					return apperr.InvalidState("Вещи больше недоступны")
				}
				return apperr.InvalidState("Вещи не зарезервированы для этого обмена")
			}
		}

		ex.Status = t.To
		if apply != nil {
			apply(ex, g.Now())
		}
		return tx.Update(ctx, ex, from)
	})
	if err != nil {
		return nil, storeError(err)
	}

	g.recordTransition(ctx, string(action), ex.Status)
	g.publish(ctx, ex, from == models.ExchangePending)

	return ex, nil
}

func (g *ExchangeGeneric) CreateReview(ctx context.Context, reviewerID uuid.UUID, in ReviewInput) (*models.Review, error) {
	if err := utils.Validate(in); err != nil {
		return nil, err
	}

	review := &models.Review{
		ID:         uuid.New(),
		ExchangeID: in.ExchangeID,
		ReviewerID: reviewerID,
		Rating:     in.Rating,
		Comment:    in.Comment,
	}

	err := g.Exchanges.WithTx(ctx, func(tx db.ExchangeTx) error {
		ex, err := tx.GetForUpdate(ctx, in.ExchangeID)
		if errors.Is(err, db.ErrNotFound) {
			return errExchangeNotFound
		}
		if err != nil {
			return err
		}

		if ex.Status != models.ExchangeCompleted {
			return apperr.InvalidState("Отзыв можно оставить только о завершённом обмене")
		}
		if !ex.IsParticipant(reviewerID) {
			return apperr.Forbidden("Оставить отзыв может только участник обмена")
		}

		exists, err := tx.HasReview(ctx, ex.ID, reviewerID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("Вы уже оставили отзыв об этом обмене")
		}

		review.ReviewedUserID = ex.Counterpart(reviewerID)
		return tx.InsertReview(ctx, review)
	})
	if errors.Is(err, db.ErrDuplicate) {
		return nil, apperr.Conflict("Вы уже оставили отзыв об этом обмене")
	}
	if err != nil {
		return nil, storeError(err)
	}

	return review, nil
}

func (g *ExchangeGeneric) FindByUser(ctx context.Context, userID uuid.UUID, role db.ExchangeRole) ([]models.ExchangeView, error) {
	exchanges, err := g.Exchanges.ListByUser(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("can't list exchanges: %w", err)
	}
	return g.project(ctx, exchanges)
}

func (g *ExchangeGeneric) FindByID(ctx context.Context, exchangeID, callerID uuid.UUID) (*models.ExchangeView, error) {
	ex, err := g.Exchanges.Get(ctx, exchangeID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, errExchangeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't get exchange: %w", err)
	}

	if !ex.IsParticipant(callerID) {
		return nil, apperr.Forbidden("У вас нет доступа к этому обмену")
	}
	return g.projectOne(ctx, ex)
}

func (g *ExchangeGeneric) CountPending(ctx context.Context, userID uuid.UUID) (int, error) {
	return g.Exchanges.CountPending(ctx, userID)
}

func (g *ExchangeGeneric) UserReviews(ctx context.Context, userID uuid.UUID) (*models.UserReviews, error) {
	reviews, err := g.Exchanges.ReviewsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("can't list reviews: %w", err)
	}

	reviewerIDs := make([]uuid.UUID, 0, len(reviews))
	for _, r := range reviews {
		reviewerIDs = append(reviewerIDs, r.ReviewerID)
	}
	users, err := g.Users.GetUsers(ctx, reviewerIDs)
	if err != nil {
		return nil, fmt.Errorf("can't load reviewers: %w", err)
	}

	res := &models.UserReviews{Reviews: make([]models.Review, 0, len(reviews))}
	sum := 0
	for _, r := range reviews {
		r.Reviewer = users[r.ReviewerID]
		res.Reviews = append(res.Reviews, r)
		sum += r.Rating
	}

	res.TotalReviews = len(reviews)
	res.AverageRating = averageRating(sum, len(reviews))
	return res, nil
}

// averageRating округляет среднее до одного знака; 0 без отзывов
func averageRating(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(n)*10) / 10
}

// ParseRole разбирает параметр type списка обменов
func ParseRole(s string) (db.ExchangeRole, error) {
	switch db.ExchangeRole(s) {
	case db.RoleAny, db.RoleSent, db.RoleReceived:
		return db.ExchangeRole(s), nil
	default:
		return "", apperr.InvalidInput("Параметр type должен быть sent или received")
	}
}

// storeError переводит ошибки хранилища в ошибки API; apperr проходят как есть
func storeError(err error) error {
	switch {
	case errors.Is(err, db.ErrDuplicate):
		return errDuplicateProposal
	case errors.Is(err, db.ErrConcurrentUpdate), errors.Is(err, db.ErrStaleExchange):
		return errConcurrentUpdate
	default:
		return err
	}
}

func (g *ExchangeGeneric) recordTransition(ctx context.Context, action string, to models.ExchangeStatus) {
	if g.transitions == nil {
		return
	}
	g.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", string(to)),
	))
}

// publish оповещает обе стороны об изменении обмена, а получателя ещё и о
// числе ожидающих предложений. Ошибки только логируются.
func (g *ExchangeGeneric) publish(ctx context.Context, ex *models.Exchange, pendingChanged bool) {
	if g.Notifier == nil {
		return
	}

	update := notify.ExchangeUpdated{ExchangeID: ex.ID, Status: string(ex.Status)}
	var events []notify.Event
	for _, userID := range []uuid.UUID{ex.ProposerID, ex.ReceiverID} {
		ev, err := notify.NewEvent(userID, notify.TypeExchangeUpdated, update)
		if err != nil {
			slog.Error("can't build event", slog.Any("error", err))
			return
		}
		events = append(events, ev)
	}

	if pendingChanged {
		count, err := g.Exchanges.CountPending(ctx, ex.ReceiverID)
		if err != nil {
			slog.Error("can't count pending exchanges", slog.String("user_id", ex.ReceiverID.String()), slog.Any("error", err))
		} else if ev, err := notify.NewEvent(ex.ReceiverID, notify.TypePendingCount, notify.PendingCount{Count: count}); err == nil {
			events = append(events, ev)
		}
	}

	if err := g.Notifier.Publish(ctx, events...); err != nil {
		slog.Error("can't publish exchange events",
			slog.String("exchange_id", ex.ID.String()),
			slog.Any("error", err))
	}
}
