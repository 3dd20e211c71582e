package websocket

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/rajivgeraev/swapeco-api/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mini App открывается с домена Telegram
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler поднимает WebSocket соединение; токен передаётся в параметре token
func (m *Manager) Handler(jwtService *utils.JWTService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := jwtService.ExtractUserID(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, `{"error":"Недействительный или просроченный токен"}`, http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Debug("websocket upgrade failed", slog.Any("error", err))
			return
		}

		NewClient(userID, conn, m).Start()
	}
}
