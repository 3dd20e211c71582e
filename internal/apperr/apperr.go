// Package apperr содержит типизированные ошибки бизнес-логики,
// которые HTTP-слой превращает в коды ответа.
package apperr

import (
	"errors"
	"net/http"
)

// Kind определяет категорию ошибки
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindForbidden
	KindInvalidState
	KindInvalidInput
	KindConflict
	KindTooManyRequests
	KindUnauthorized
)

// Сентинел-ошибки для errors.Is
var (
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "не найдено"}
	ErrForbidden       = &Error{Kind: KindForbidden, Message: "доступ запрещён"}
	ErrInvalidState    = &Error{Kind: KindInvalidState, Message: "недопустимое состояние"}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput, Message: "неверные данные"}
	ErrConflict        = &Error{Kind: KindConflict, Message: "конфликт"}
	ErrTooManyRequests = &Error{Kind: KindTooManyRequests, Message: "слишком много запросов"}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized, Message: "пользователь не авторизован"}
)

// Error ошибка с категорией и человекочитаемым сообщением
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is сравнивает ошибки по категории, поэтому errors.Is(err, ErrConflict)
// срабатывает для любой ошибки вида KindConflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func NotFound(msg string) error        { return newError(KindNotFound, msg) }
func Forbidden(msg string) error       { return newError(KindForbidden, msg) }
func InvalidState(msg string) error    { return newError(KindInvalidState, msg) }
func InvalidInput(msg string) error    { return newError(KindInvalidInput, msg) }
func Conflict(msg string) error        { return newError(KindConflict, msg) }
func TooManyRequests(msg string) error { return newError(KindTooManyRequests, msg) }
func Unauthorized(msg string) error    { return newError(KindUnauthorized, msg) }

// HTTPStatus возвращает HTTP-код для ошибки. Для ошибок вне таксономии - 500.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindInvalidInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage возвращает сообщение, которое можно показать клиенту
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Внутренняя ошибка сервера"
}
