package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"golang.org/x/time/rate"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
	"github.com/rajivgeraev/swapeco-api/internal/db"
	"github.com/rajivgeraev/swapeco-api/internal/middleware"
	"github.com/rajivgeraev/swapeco-api/internal/models"
	"github.com/rajivgeraev/swapeco-api/internal/utils"
)

// initDataTTL срок действия initData от Telegram
const initDataTTL = 24 * time.Hour

// UserStore хранит пользователей, вошедших через Telegram
type UserStore interface {
	UpsertTelegramUser(ctx context.Context, tg db.TelegramUser) (*models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// AuthService – структура для обработки авторизации
type AuthService struct {
	users      UserStore
	botToken   string
	jwtService *utils.JWTService
	limiter    *loginLimiter
}

// NewAuthService – конструктор AuthService
func NewAuthService(users UserStore, botToken string, jwtService *utils.JWTService) *AuthService {
	return &AuthService{
		users:      users,
		botToken:   botToken,
		jwtService: jwtService,
		limiter:    newLoginLimiter(rate.Every(time.Minute/10), 5),
	}
}

// TelegramAuthHandler проверяет initData, создает или обновляет пользователя
// и возвращает JWT
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	if !s.limiter.Allow(c.IP()) {
		return apperr.TooManyRequests("Слишком много попыток входа, попробуйте позже")
	}

	var payload struct {
		InitData string `json:"init_data"`
	}
	if err := c.Bind().Body(&payload); err != nil {
		return apperr.InvalidInput("Неверный формат данных")
	}

	// Проверяем initData
	if err := initdata.Validate(payload.InitData, s.botToken, initDataTTL); err != nil {
		slog.Debug("telegram init data rejected", slog.Any("error", err))
		return apperr.Unauthorized("Недействительные данные Telegram")
	}

	// Парсим данные
	data, err := initdata.Parse(payload.InitData)
	if err != nil || data.User.ID == 0 {
		return apperr.InvalidInput("Не удалось разобрать initData")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.users.UpsertTelegramUser(ctx, db.TelegramUser{
		TelegramID:   data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		PhotoURL:     data.User.PhotoURL,
		IsPremium:    data.User.IsPremium,
		LanguageCode: data.User.LanguageCode,
	})
	if err != nil {
		return err
	}

	// Генерируем JWT
	token, err := s.jwtService.GenerateToken(user.ID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Profile возвращает профиль текущего пользователя
func (s *AuthService) Profile(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.users.GetUser(ctx, middleware.UserID(c))
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("Пользователь не найден")
	}
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// loginLimiter ограничивает частоту входа с одного IP
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func newLoginLimiter(every rate.Limit, burst int) *loginLimiter {
	return &loginLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
		burst:    burst,
	}
}

func (l *loginLimiter) Allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[ip]
	if !ok {
		// Простая защита от разрастания таблицы
		if len(l.limiters) > 10000 {
			clear(l.limiters)
		}
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[ip] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
