package exchange

import (
	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
	"github.com/rajivgeraev/swapeco-api/internal/models"
)

// Action действие участника над обменом
type Action string

const (
	ActionAccept   Action = "accept"
	ActionRefuse   Action = "refuse"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

// Actions перечисляет все действия
var Actions = []Action{ActionAccept, ActionRefuse, ActionCancel, ActionComplete}

// Role роль пользователя в конкретном обмене
type Role int

const (
	RoleNone Role = iota
	RoleProposer
	RoleReceiver
)

// ItemEffect изменение статуса вещей, сопровождающее переход
type ItemEffect int

const (
	EffectNone ItemEffect = iota
	// EffectReserve available -> reserved
	EffectReserve
	// EffectExchange reserved -> exchanged
	EffectExchange
)

// Transition результат допустимого действия
type Transition struct {
	To     models.ExchangeStatus
	Effect ItemEffect
}

var permittedRoles = map[Action][]Role{
	ActionAccept:   {RoleReceiver},
	ActionRefuse:   {RoleReceiver},
	ActionCancel:   {RoleProposer},
	ActionComplete: {RoleProposer, RoleReceiver},
}

var transitions = map[models.ExchangeStatus]map[Action]Transition{
	models.ExchangePending: {
		ActionAccept: {To: models.ExchangeAccepted, Effect: EffectReserve},
		ActionRefuse: {To: models.ExchangeRefused, Effect: EffectNone},
		ActionCancel: {To: models.ExchangeCancelled, Effect: EffectNone},
	},
	models.ExchangeAccepted: {
		ActionComplete: {To: models.ExchangeCompleted, Effect: EffectExchange},
	},
}

var invalidStateMessages = map[Action]string{
	ActionAccept:   "Обмен уже обработан",
	ActionRefuse:   "Обмен уже обработан",
	ActionCancel:   "Отменить можно только ожидающий обмен",
	ActionComplete: "Завершить можно только принятый обмен",
}

var forbiddenMessages = map[Action]string{
	ActionAccept:   "Ответить на предложение может только получатель",
	ActionRefuse:   "Ответить на предложение может только получатель",
	ActionCancel:   "Отменить обмен может только инициатор",
	ActionComplete: "Завершить обмен может только участник",
}

// RoleOf определяет роль пользователя в обмене
func RoleOf(ex *models.Exchange, userID uuid.UUID) Role {
	switch userID {
	case ex.ProposerID:
		return RoleProposer
	case ex.ReceiverID:
		return RoleReceiver
	default:
		return RoleNone
	}
}

// Step проверяет действие над обменом в статусе from. Роль проверяется
// раньше статуса.
func Step(from models.ExchangeStatus, action Action, role Role) (Transition, error) {
	roles, ok := permittedRoles[action]
	if !ok {
		return Transition{}, apperr.InvalidInput("Неизвестное действие")
	}
	if !hasRole(roles, role) {
		return Transition{}, apperr.Forbidden(forbiddenMessages[action])
	}

	t, ok := transitions[from][action]
	if !ok {
		return Transition{}, apperr.InvalidState(invalidStateMessages[action])
	}
	return t, nil
}

// ItemStatuses возвращает пару статусов вещей (до, после) для эффекта
func (e ItemEffect) ItemStatuses() (from, to models.ItemStatus, ok bool) {
	switch e {
	case EffectReserve:
		return models.ItemAvailable, models.ItemReserved, true
	case EffectExchange:
		return models.ItemReserved, models.ItemExchanged, true
	default:
		return "", "", false
	}
}

func hasRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
