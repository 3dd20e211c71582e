package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/swapeco-api/internal/models"
)

type FavoriteRepository interface {
	Add(ctx context.Context, fav *models.Favorite) error
	Remove(ctx context.Context, userID, itemID uuid.UUID) (bool, error)
	Exists(ctx context.Context, userID, itemID uuid.UUID) (bool, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Favorite, int, error)
}

// FavoriteDatabase реализация FavoriteRepository поверх PostgreSQL
type FavoriteDatabase struct {
	Pool *pgxpool.Pool
}

// Add сохраняет запись; повторное добавление возвращает ErrDuplicate
func (d *FavoriteDatabase) Add(ctx context.Context, fav *models.Favorite) error {
	err := d.Pool.QueryRow(ctx, `
		INSERT INTO favorites (id, user_id, item_id)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, fav.ID, fav.UserID, fav.ItemID).Scan(&fav.CreatedAt)
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("can't insert favorite: %w", err)
	}
	return nil
}

func (d *FavoriteDatabase) Remove(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND item_id = $2`, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("can't delete favorite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (d *FavoriteDatabase) Exists(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	var exists bool
	err := d.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND item_id = $2)
	`, userID, itemID).Scan(&exists)
	return exists, err
}

// List возвращает избранное пользователя вместе с вещами, новые первыми
func (d *FavoriteDatabase) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Favorite, int, error) {
	var total int
	if err := d.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("can't count favorites: %w", err)
	}

	rows, err := d.Pool.Query(ctx, `
		SELECT id, user_id, item_id, created_at
		FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("can't query favorites: %w", err)
	}
	defer rows.Close()

	var favorites []models.Favorite
	var itemIDs []uuid.UUID
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.ItemID, &f.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("can't scan favorite: %w", err)
		}
		favorites = append(favorites, f)
		itemIDs = append(itemIDs, f.ItemID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating over favorites: %w", err)
	}

	items, err := getItems(ctx, d.Pool, itemIDs)
	if err != nil {
		return nil, 0, err
	}
	for i := range favorites {
		favorites[i].Item = items[favorites[i].ItemID]
	}

	return favorites, total, nil
}
