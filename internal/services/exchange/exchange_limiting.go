package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
	"github.com/rajivgeraev/swapeco-api/internal/models"
)

// ErrLimitExceeded пользователь исчерпал лимит предложений за час
var ErrLimitExceeded = apperr.TooManyRequests("Превышен лимит предложений, попробуйте позже")

// ProposalLimiter счётчик созданных пользователем предложений
type ProposalLimiter interface {
	Reserve(ctx context.Context, userID uuid.UUID) (bool, error)
	Release(ctx context.Context, userID uuid.UUID) error
}

// ExchangeLimiting ограничивает число предложений, создаваемых пользователем.
// Место в лимите занимается до создания и возвращается, если создать
// предложение не удалось.
//
// Если проверить лимит не удалось, поведение зависит от FailOpen: при true
// запрос пропускается, иначе возвращается ошибка.
type ExchangeLimiting struct {
	Service

	Limiter  ProposalLimiter
	FailOpen bool
}

func (el *ExchangeLimiting) Create(ctx context.Context, proposerID uuid.UUID, in CreateInput) (*models.ExchangeView, error) {
	reserved, err := el.Limiter.Reserve(ctx, proposerID)
	if err != nil {
		if !el.FailOpen {
			return nil, fmt.Errorf("can't check if limit exceeded: %w", err)
		}

		slog.Error("can't check if limit exceeded", slog.Any("error", err))
	} else if !reserved {
		return nil, ErrLimitExceeded
	}

	v, err := el.Service.Create(ctx, proposerID, in)
	if err != nil {
		if reserved {
			if err := el.Limiter.Release(ctx, proposerID); err != nil {
				slog.Error("can't release user's limit", slog.Any("error", err))
			}
		}
		return nil, err
	}

	return v, nil
}
