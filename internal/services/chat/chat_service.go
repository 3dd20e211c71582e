package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
	"github.com/rajivgeraev/swapeco-api/internal/db"
	"github.com/rajivgeraev/swapeco-api/internal/middleware"
	"github.com/rajivgeraev/swapeco-api/internal/models"
	"github.com/rajivgeraev/swapeco-api/internal/notify"
	"github.com/rajivgeraev/swapeco-api/internal/utils"
	"github.com/rajivgeraev/swapeco-api/internal/websocket"
)

// pageSize ограничение количества сообщений в ответе
const pageSize = 50

// ExchangeReader читает обмены, к которым привязан чат
type ExchangeReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Exchange, error)
}

type Notifier interface {
	Publish(ctx context.Context, events ...notify.Event) error
}

// ChatService представляет сервис переписки участников обмена
type ChatService struct {
	messages   db.MessageRepository
	exchanges  ExchangeReader
	users      db.UserDirectory
	notifier   Notifier
	jwtService *utils.JWTService
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(messages db.MessageRepository, exchanges ExchangeReader, users db.UserDirectory, notifier Notifier, jwtService *utils.JWTService) *ChatService {
	return &ChatService{
		messages:   messages,
		exchanges:  exchanges,
		users:      users,
		notifier:   notifier,
		jwtService: jwtService,
	}
}

// MessageRead payload события messages_read
type MessageRead struct {
	ExchangeID uuid.UUID `json:"exchange_id"`
	ReaderID   uuid.UUID `json:"reader_id"`
}

// Typing payload событий typing и stop_typing
type Typing struct {
	ExchangeID uuid.UUID `json:"exchange_id"`
	UserID     uuid.UUID `json:"user_id"`
}

type sendRequest struct {
	Text string `json:"text"`
}

// GetMessages возвращает сообщения обмена и отмечает входящие прочитанными
func (s *ChatService) GetMessages(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	var before time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return apperr.InvalidInput("Параметр before должен быть в формате RFC3339")
		}
		before = t
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ex, err := s.chatExchange(ctx, c.Params("id"), userID)
	if err != nil {
		return err
	}

	messages, err := s.messages.List(ctx, ex.ID, before, pageSize)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []models.Message{}
	}

	users, err := s.users.GetUsers(ctx, []uuid.UUID{ex.ProposerID, ex.ReceiverID})
	if err != nil {
		return err
	}
	for i := range messages {
		messages[i].Sender = users[messages[i].SenderID]
	}

	read, err := s.messages.MarkRead(ctx, ex.ID, userID)
	if err != nil {
		slog.Error("can't mark messages read", slog.String("exchange_id", ex.ID.String()), slog.Any("error", err))
	} else if read > 0 {
		s.publish(ctx, ex.Counterpart(userID), notify.TypeMessagesRead, MessageRead{ExchangeID: ex.ID, ReaderID: userID})
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"has_more": len(messages) == pageSize,
	})
}

// SendMessage отправляет новое сообщение собеседнику
func (s *ChatService) SendMessage(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req sendRequest
	if err := c.Bind().Body(&req); err != nil {
		return apperr.InvalidInput("Неверный формат данных")
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return apperr.InvalidInput("Текст сообщения не может быть пустым")
	}
	if utf8.RuneCountInString(text) > models.MaxMessageLength {
		return apperr.InvalidInput("Сообщение слишком длинное")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ex, err := s.chatExchange(ctx, c.Params("id"), userID)
	if err != nil {
		return err
	}

	msg := &models.Message{
		ID:         uuid.New(),
		ExchangeID: ex.ID,
		SenderID:   userID,
		Text:       text,
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return err
	}

	if sender, err := s.users.GetUser(ctx, userID); err == nil {
		msg.Sender = sender
	}

	s.publish(ctx, ex.Counterpart(userID), notify.TypeNewMessage, msg)

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// HandleClientEvent пересылает индикатор набора текста собеседнику по обмену
func (s *ChatService) HandleClientEvent(userID uuid.UUID, ev websocket.Event) {
	if ev.Type != notify.TypeTyping && ev.Type != notify.TypeStopTyping {
		return
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ex, err := s.chatExchange(ctx, ev.ExchangeID, userID)
	if err != nil {
		slog.Debug("typing event rejected",
			slog.String("user_id", userID.String()),
			slog.String("exchange_id", ev.ExchangeID),
			slog.Any("error", err))
		return
	}

	s.publish(ctx, ex.Counterpart(userID), ev.Type, Typing{ExchangeID: ex.ID, UserID: userID})
}

// chatExchange загружает обмен и проверяет, что пользователь может писать в его чат
func (s *ChatService) chatExchange(ctx context.Context, rawID string, userID uuid.UUID) (*models.Exchange, error) {
	exchangeID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperr.InvalidInput("Неверный формат ID обмена")
	}

	ex, err := s.exchanges.Get(ctx, exchangeID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, apperr.NotFound("Обмен не найден")
	}
	if err != nil {
		return nil, err
	}

	if !ex.IsParticipant(userID) {
		return nil, apperr.Forbidden("У вас нет доступа к этому чату")
	}
	if ex.Status != models.ExchangeAccepted && ex.Status != models.ExchangeCompleted {
		return nil, apperr.InvalidState("Чат доступен только для принятых обменов")
	}
	return ex, nil
}

func (s *ChatService) publish(ctx context.Context, to uuid.UUID, typ string, payload any) {
	ev, err := notify.NewEvent(to, typ, payload)
	if err == nil {
		err = s.notifier.Publish(ctx, ev)
	}
	if err != nil {
		slog.Error("can't publish chat event", slog.String("type", typ), slog.Any("error", err))
	}
}
