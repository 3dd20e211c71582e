package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/notify"
)

// Manager представляет центральный менеджер WebSocket соединений этого экземпляра
type Manager struct {
	clients      map[uuid.UUID]*Client
	clientsMutex sync.RWMutex
	userClients  map[uuid.UUID]map[uuid.UUID]bool // userID -> map[clientID]bool
	userMutex    sync.RWMutex

	// OnClientEvent вызывается для событий, присланных клиентом
	OnClientEvent func(userID uuid.UUID, ev Event)
}

// Event представляет структуру сообщения для WebSocket
type Event struct {
	Type       string          `json:"type"`
	ExchangeID string          `json:"exchange_id,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewManager создает новый экземпляр Manager
func NewManager() *Manager {
	return &Manager{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

// AddClient регистрирует нового клиента
func (m *Manager) AddClient(client *Client) {
	m.clientsMutex.Lock()
	m.clients[client.ID] = client
	m.clientsMutex.Unlock()

	// Связываем клиент с пользователем
	m.userMutex.Lock()
	if _, exists := m.userClients[client.UserID]; !exists {
		m.userClients[client.UserID] = make(map[uuid.UUID]bool)
	}
	m.userClients[client.UserID][client.ID] = true
	m.userMutex.Unlock()

	slog.Debug("websocket client connected",
		slog.String("client_id", client.ID.String()),
		slog.String("user_id", client.UserID.String()))
}

// RemoveClient удаляет клиента
func (m *Manager) RemoveClient(clientID uuid.UUID) {
	m.clientsMutex.Lock()
	client, exists := m.clients[clientID]
	delete(m.clients, clientID)
	m.clientsMutex.Unlock()

	if !exists {
		return
	}

	m.userMutex.Lock()
	if clients, ok := m.userClients[client.UserID]; ok {
		delete(clients, clientID)
		// Последний клиент пользователя
		if len(clients) == 0 {
			delete(m.userClients, client.UserID)
		}
	}
	m.userMutex.Unlock()

	client.close()

	slog.Debug("websocket client disconnected",
		slog.String("client_id", clientID.String()),
		slog.String("user_id", client.UserID.String()))
}

// Deliver передаёт событие из канала уведомлений подключённым клиентам пользователя
func (m *Manager) Deliver(ev notify.Event) {
	m.SendToUser(ev.UserID, Event{
		Type:      ev.Type,
		UserID:    ev.UserID.String(),
		Timestamp: ev.Timestamp,
		Payload:   ev.Payload,
	})
}

// SendToUser отправляет событие всем соединениям пользователя. Если
// пользователь не в сети, событие отбрасывается.
func (m *Manager) SendToUser(userID uuid.UUID, event Event) {
	m.userMutex.RLock()
	clientIDs := make([]uuid.UUID, 0, len(m.userClients[userID]))
	for id := range m.userClients[userID] {
		clientIDs = append(clientIDs, id)
	}
	m.userMutex.RUnlock()

	if len(clientIDs) == 0 {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		slog.Error("can't marshal websocket event", slog.Any("error", err))
		return
	}

	for _, clientID := range clientIDs {
		m.clientsMutex.RLock()
		client, exists := m.clients[clientID]
		m.clientsMutex.RUnlock()

		if !exists {
			continue
		}

		select {
		case client.send <- eventJSON:
		default:
			// Клиент не успевает читать - закрываем соединение
			slog.Warn("send buffer full, dropping client", slog.String("client_id", client.ID.String()))
			m.RemoveClient(client.ID)
		}
	}
}

// OnlineClients возвращает число соединений пользователя
func (m *Manager) OnlineClients(userID uuid.UUID) int {
	m.userMutex.RLock()
	defer m.userMutex.RUnlock()
	return len(m.userClients[userID])
}

// Shutdown закрывает все соединения
func (m *Manager) Shutdown() {
	m.clientsMutex.Lock()
	clients := m.clients
	m.clients = make(map[uuid.UUID]*Client)
	m.clientsMutex.Unlock()

	m.userMutex.Lock()
	m.userClients = make(map[uuid.UUID]map[uuid.UUID]bool)
	m.userMutex.Unlock()

	for _, client := range clients {
		client.close()
	}
}
