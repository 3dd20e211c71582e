package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/swapeco-api/internal/models"
)

var (
	// ErrItemNotAvailable вещь зарезервирована или уже обменяна
	ErrItemNotAvailable = errors.New("item is not available")
	// ErrItemInUse на вещь ссылается ожидающее предложение обмена
	ErrItemInUse = errors.New("item is referenced by a pending exchange")
)

// ItemFilter параметры публичного списка вещей
type ItemFilter struct {
	Category models.Category
	City     string
	Query    string
	Limit    int
	Offset   int
}

type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	Get(ctx context.Context, id uuid.UUID) (*models.Item, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
	ListAvailable(ctx context.Context, f ItemFilter) ([]models.Item, int, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id uuid.UUID) error
}

const itemColumns = `id, owner_id, title, description, category, condition, images,
	city, postal_code, view_count, status, created_at, updated_at`

// ItemDatabase реализация ItemRepository поверх PostgreSQL
type ItemDatabase struct {
	Pool *pgxpool.Pool
}

func (d *ItemDatabase) Create(ctx context.Context, item *models.Item) error {
	err := d.Pool.QueryRow(ctx, `
		INSERT INTO items (id, owner_id, title, description, category, condition, images, city, postal_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, item.ID, item.OwnerID, item.Title, item.Description, item.Category, item.Condition,
		item.Images, item.City, item.PostalCode, item.Status).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("can't insert item: %w", err)
	}
	return nil
}

func (d *ItemDatabase) Get(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, err := scanItem(d.Pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return item, nil
}

func (d *ItemDatabase) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	return getItems(ctx, d.Pool, ids)
}

func (d *ItemDatabase) IncrementViews(ctx context.Context, id uuid.UUID) error {
	_, err := d.Pool.Exec(ctx, `UPDATE items SET view_count = view_count + 1 WHERE id = $1 AND deleted_at IS NULL`, id)
	return err
}

func (d *ItemDatabase) ListAvailable(ctx context.Context, f ItemFilter) ([]models.Item, int, error) {
	conds := []string{"status = 'available'", "deleted_at IS NULL"}
	var args []any

	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.City != "" {
		args = append(args, f.City)
		conds = append(conds, fmt.Sprintf("lower(city) = lower($%d)", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		conds = append(conds, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("can't count items: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	q := `SELECT ` + itemColumns + ` FROM items` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	items, err := queryItems(ctx, d.Pool, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (d *ItemDatabase) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	return queryItems(ctx, d.Pool, `
		SELECT `+itemColumns+` FROM items WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY updated_at DESC
	`, ownerID)
}

// Update меняет описательные поля вещи. Статус не меняется, а сама вещь
// должна быть доступна.
func (d *ItemDatabase) Update(ctx context.Context, item *models.Item) error {
	err := d.Pool.QueryRow(ctx, `
		UPDATE items
		SET title = $1, description = $2, category = $3, condition = $4, images = $5,
			city = $6, postal_code = $7, updated_at = NOW()
		WHERE id = $8 AND status = 'available' AND deleted_at IS NULL
		RETURNING updated_at
	`, item.Title, item.Description, item.Category, item.Condition, item.Images,
		item.City, item.PostalCode, item.ID).Scan(&item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrItemNotAvailable
	}
	return err
}

// Delete удаляет доступную вещь, на которую не ссылаются ожидающие предложения.
// Вещь из истории обменов помечается удалённой, чтобы история сохранила ссылку;
// остальные вещи удаляются физически.
func (d *ItemDatabase) Delete(ctx context.Context, id uuid.UUID) error {
	return WithTx(ctx, d.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var status models.ItemStatus
		err := tx.QueryRow(ctx, `
			SELECT status FROM items WHERE id = $1 AND deleted_at IS NULL FOR UPDATE
		`, id).Scan(&status)
		if err != nil {
			return mapError(err)
		}
		if status != models.ItemAvailable {
			return ErrItemNotAvailable
		}

		var pending, referenced bool
		err = tx.QueryRow(ctx, `
			WITH refs AS (
				SELECT e.status FROM exchanges e WHERE e.requested_item_id = $1
				UNION ALL
				SELECT e.status FROM exchanges e
				JOIN exchange_offered_items o ON o.exchange_id = e.id
				WHERE o.item_id = $1
			)
			SELECT
				EXISTS (SELECT 1 FROM refs WHERE status = 'pending'),
				EXISTS (SELECT 1 FROM refs)
		`, id).Scan(&pending, &referenced)
		if err != nil {
			return fmt.Errorf("can't check item usage: %w", err)
		}
		if pending {
			return ErrItemInUse
		}

		if !referenced {
			if _, err = tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
				return fmt.Errorf("can't delete item: %w", err)
			}
			return nil
		}

		if _, err = tx.Exec(ctx, `UPDATE items SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1`, id); err != nil {
			return fmt.Errorf("can't mark item deleted: %w", err)
		}
		if _, err = tx.Exec(ctx, `DELETE FROM favorites WHERE item_id = $1`, id); err != nil {
			return fmt.Errorf("can't delete item favorites: %w", err)
		}
		return nil
	})
}

// getItems загружает вещи по набору ID, включая помеченные удалёнными:
// проекции обменов показывают их в истории
func getItems(ctx context.Context, q Querier, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	return itemsByID(ctx, q, ids, "")
}

// itemsByID выполняет выборку по ID; suffix добавляется к запросу как есть
func itemsByID(ctx context.Context, q Querier, ids []uuid.UUID, suffix string) (map[uuid.UUID]*models.Item, error) {
	items := make(map[uuid.UUID]*models.Item, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	list, err := queryItems(ctx, q, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1) `+suffix, ids)
	if err != nil {
		return nil, err
	}

	for i := range list {
		items[list[i].ID] = &list[i]
	}
	return items, nil
}

func queryItems(ctx context.Context, q Querier, sql string, args ...any) ([]models.Item, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("can't query items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over items: %w", err)
	}
	return items, nil
}

func scanItem(row pgx.Row) (*models.Item, error) {
	var item models.Item
	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.Title,
		&item.Description,
		&item.Category,
		&item.Condition,
		&item.Images,
		&item.City,
		&item.PostalCode,
		&item.ViewCount,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
