package exchange

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/db"
	"github.com/rajivgeraev/swapeco-api/internal/models"
)

type ExchangeLogging struct {
	Service
}

func logCall(msg string, t0 time.Time, err error, attrs ...any) {
	log := slog.With(attrs...).With(slog.String("delay", time.Since(t0).String()))

	if err != nil {
		log.Error(msg+" failed", slog.Any("error", err))
	} else {
		log.Debug(msg)
	}
}

func (el *ExchangeLogging) Create(ctx context.Context, proposerID uuid.UUID, in CreateInput) (v *models.ExchangeView, err error) {
	defer func(t0 time.Time) {
		attrs := []any{
			slog.String("user_id", proposerID.String()),
			slog.String("requested_item_id", in.RequestedItemID.String()),
			slog.Int("offered_items", len(in.OfferedItemIDs)),
		}
		if v != nil {
			attrs = append(attrs, slog.String("exchange_id", v.ID.String()))
		}
		logCall("create exchange", t0, err, attrs...)
	}(time.Now())

	return el.Service.Create(ctx, proposerID, in)
}

func (el *ExchangeLogging) Respond(ctx context.Context, exchangeID, callerID uuid.UUID, in RespondInput) (v *models.ExchangeView, err error) {
	defer func(t0 time.Time) {
		logCall("respond to exchange", t0, err,
			slog.String("exchange_id", exchangeID.String()),
			slog.String("user_id", callerID.String()),
			slog.String("response", string(in.Response)),
		)
	}(time.Now())

	return el.Service.Respond(ctx, exchangeID, callerID, in)
}

func (el *ExchangeLogging) Cancel(ctx context.Context, exchangeID, callerID uuid.UUID) (v *models.ExchangeView, err error) {
	defer func(t0 time.Time) {
		logCall("cancel exchange", t0, err,
			slog.String("exchange_id", exchangeID.String()),
			slog.String("user_id", callerID.String()),
		)
	}(time.Now())

	return el.Service.Cancel(ctx, exchangeID, callerID)
}

func (el *ExchangeLogging) Complete(ctx context.Context, exchangeID, callerID uuid.UUID) (v *models.ExchangeView, err error) {
	defer func(t0 time.Time) {
		logCall("complete exchange", t0, err,
			slog.String("exchange_id", exchangeID.String()),
			slog.String("user_id", callerID.String()),
		)
	}(time.Now())

	return el.Service.Complete(ctx, exchangeID, callerID)
}

func (el *ExchangeLogging) CreateReview(ctx context.Context, reviewerID uuid.UUID, in ReviewInput) (r *models.Review, err error) {
	defer func(t0 time.Time) {
		logCall("create review", t0, err,
			slog.String("exchange_id", in.ExchangeID.String()),
			slog.String("user_id", reviewerID.String()),
			slog.Int("rating", in.Rating),
		)
	}(time.Now())

	return el.Service.CreateReview(ctx, reviewerID, in)
}

func (el *ExchangeLogging) FindByUser(ctx context.Context, userID uuid.UUID, role db.ExchangeRole) (vs []models.ExchangeView, err error) {
	defer func(t0 time.Time) {
		logCall("list exchanges", t0, err,
			slog.String("user_id", userID.String()),
			slog.String("type", string(role)),
			slog.Int("count", len(vs)),
		)
	}(time.Now())

	return el.Service.FindByUser(ctx, userID, role)
}
