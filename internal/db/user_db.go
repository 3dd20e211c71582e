package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/swapeco-api/internal/models"
)

// UserDirectory предоставляет отображаемые данные пользователей
type UserDirectory interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.User, error)
}

// TelegramUser представляет данные пользователя из Telegram
type TelegramUser struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	PhotoURL     string
	IsPremium    bool
	LanguageCode string
}

// UserDatabase реализация UserDirectory поверх PostgreSQL
type UserDatabase struct {
	Pool *pgxpool.Pool
}

// UpsertTelegramUser создает нового пользователя через Telegram или обновляет существующего
func (d *UserDatabase) UpsertTelegramUser(ctx context.Context, tg TelegramUser) (*models.User, error) {
	var user *models.User

	err := WithTx(ctx, d.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var userID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT user_id FROM telegram_users WHERE telegram_id = $1
		`, tg.TelegramID).Scan(&userID)

		switch {
		case err == pgx.ErrNoRows:
			// Создаем запись в users
			err = tx.QueryRow(ctx, `
				INSERT INTO users (first_name, last_name, username, avatar_url, last_login_at)
				VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
				RETURNING id
			`, tg.FirstName, tg.LastName, tg.Username, tg.PhotoURL).Scan(&userID)
			if err != nil {
				return fmt.Errorf("ошибка при создании пользователя: %w", err)
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO telegram_users (user_id, telegram_id, username, first_name, last_name, photo_url, is_premium, language_code)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, userID, tg.TelegramID, tg.Username, tg.FirstName, tg.LastName, tg.PhotoURL, tg.IsPremium, tg.LanguageCode)
			if err != nil {
				return fmt.Errorf("ошибка при создании Telegram пользователя: %w", err)
			}

		case err != nil:
			return fmt.Errorf("ошибка при проверке существования пользователя Telegram: %w", err)

		default:
			// Обновляем время входа и данные Telegram
			if _, err = tx.Exec(ctx, `
				UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1
			`, userID); err != nil {
				return fmt.Errorf("ошибка при обновлении времени входа пользователя: %w", err)
			}

			if _, err = tx.Exec(ctx, `
				UPDATE telegram_users
				SET username = $1, first_name = $2, last_name = $3, photo_url = $4,
					is_premium = $5, language_code = $6, updated_at = CURRENT_TIMESTAMP
				WHERE telegram_id = $7
			`, tg.Username, tg.FirstName, tg.LastName, tg.PhotoURL, tg.IsPremium, tg.LanguageCode, tg.TelegramID); err != nil {
				return fmt.Errorf("ошибка при обновлении Telegram пользователя: %w", err)
			}
		}

		user, err = scanUser(tx.QueryRow(ctx, selectUserSQL+` WHERE id = $1`, userID))
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

const selectUserSQL = `
	SELECT id, username, first_name, last_name, avatar_url, city
	FROM users`

// GetUser получает пользователя по ID
func (d *UserDatabase) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := scanUser(d.Pool.QueryRow(ctx, selectUserSQL+` WHERE id = $1`, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// GetUsers получает пользователей по набору ID
func (d *UserDatabase) GetUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	users := make(map[uuid.UUID]*models.User, len(userIDs))
	if len(userIDs) == 0 {
		return users, nil
	}

	rows, err := d.Pool.Query(ctx, selectUserSQL+` WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("can't query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan user: %w", err)
		}
		users[u.ID] = u
	}

	return users, rows.Err()
}

// scanUser сканирует строку users, преобразуя nullable поля
func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var username, firstName, lastName, avatarURL, city pgtype.Text

	if err := row.Scan(&user.ID, &username, &firstName, &lastName, &avatarURL, &city); err != nil {
		return nil, err
	}

	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.AvatarURL = avatarURL.String
	user.City = city.String

	return &user, nil
}
