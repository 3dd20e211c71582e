package exchange

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/models"
)

// PendingCache хранилище счётчиков ожидающих предложений
type PendingCache interface {
	Get(ctx context.Context, userID uuid.UUID) (count int, ok bool, err error)
	Set(ctx context.Context, userID uuid.UUID, count int) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// ExchangeCaching кэширует CountPending. Счётчик получателя сбрасывается
// после каждого изменения, затрагивающего ожидающие предложения.
// Ошибки кэша не возвращаются.
type ExchangeCaching struct {
	Service

	Cache PendingCache
}

func (ec *ExchangeCaching) CountPending(ctx context.Context, userID uuid.UUID) (int, error) {
	count, ok, err := ec.Cache.Get(ctx, userID)
	switch {
	case err != nil:
		slog.Error("can't get pending count from cache", slog.Any("error", err))
	case ok:
		return count, nil
	}

	count, err = ec.Service.CountPending(ctx, userID)
	if err != nil {
		return 0, err
	}

	if err := ec.Cache.Set(ctx, userID, count); err != nil {
		slog.Error("can't set pending count in cache", slog.Any("error", err))
	}
	return count, nil
}

func (ec *ExchangeCaching) Create(ctx context.Context, proposerID uuid.UUID, in CreateInput) (*models.ExchangeView, error) {
	v, err := ec.Service.Create(ctx, proposerID, in)
	ec.invalidate(ctx, v)
	return v, err
}

func (ec *ExchangeCaching) Respond(ctx context.Context, exchangeID, callerID uuid.UUID, in RespondInput) (*models.ExchangeView, error) {
	v, err := ec.Service.Respond(ctx, exchangeID, callerID, in)
	ec.invalidate(ctx, v)
	return v, err
}

func (ec *ExchangeCaching) Cancel(ctx context.Context, exchangeID, callerID uuid.UUID) (*models.ExchangeView, error) {
	v, err := ec.Service.Cancel(ctx, exchangeID, callerID)
	ec.invalidate(ctx, v)
	return v, err
}

func (ec *ExchangeCaching) invalidate(ctx context.Context, v *models.ExchangeView) {
	if v == nil {
		return
	}
	if err := ec.Cache.Invalidate(ctx, v.ReceiverID); err != nil {
		slog.Error("can't invalidate pending count", slog.Any("error", err))
	}
}
