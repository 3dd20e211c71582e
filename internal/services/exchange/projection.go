package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/models"
)

func (g *ExchangeGeneric) projectOne(ctx context.Context, ex *models.Exchange) (*models.ExchangeView, error) {
	views, err := g.project(ctx, []models.Exchange{*ex})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// committedView проецирует уже зафиксированный обмен. Ошибка загрузки
// участников или вещей не отменяет изменение: ответ содержит обмен без них.
func (g *ExchangeGeneric) committedView(ctx context.Context, ex *models.Exchange) *models.ExchangeView {
	v, err := g.projectOne(ctx, ex)
	if err != nil {
		slog.Error("can't project committed exchange",
			slog.String("exchange_id", ex.ID.String()),
			slog.Any("error", err))
		return &models.ExchangeView{Exchange: *ex, OfferedItems: []*models.ItemSummary{}}
	}
	return v
}

// project дополняет обмены данными участников и вещей, загружая их
// одним запросом на каждый вид сущностей
func (g *ExchangeGeneric) project(ctx context.Context, exchanges []models.Exchange) ([]models.ExchangeView, error) {
	views := make([]models.ExchangeView, 0, len(exchanges))
	if len(exchanges) == 0 {
		return views, nil
	}

	var itemIDs, userIDs []uuid.UUID
	for i := range exchanges {
		itemIDs = append(itemIDs, exchanges[i].ItemIDs()...)
		userIDs = append(userIDs, exchanges[i].ProposerID, exchanges[i].ReceiverID)
	}

	items, err := g.Items.GetMany(ctx, dedupe(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("can't load exchange items: %w", err)
	}
	users, err := g.Users.GetUsers(ctx, dedupe(userIDs))
	if err != nil {
		return nil, fmt.Errorf("can't load exchange participants: %w", err)
	}

	for _, ex := range exchanges {
		v := models.ExchangeView{
			Exchange:     ex,
			Proposer:     users[ex.ProposerID],
			Receiver:     users[ex.ReceiverID],
			OfferedItems: make([]*models.ItemSummary, 0, len(ex.OfferedItemIDs)),
		}
		for _, id := range ex.OfferedItemIDs {
			if item, ok := items[id]; ok {
				v.OfferedItems = append(v.OfferedItems, item.Summary())
			}
		}
		if item, ok := items[ex.RequestedItemID]; ok {
			v.RequestedItem = item.Summary()
		}
		views = append(views, v)
	}

	return views, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
