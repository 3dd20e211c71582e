package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// Listener слушает канал событий и передаёт их Handler
type Listener struct {
	DSN     string
	Handler func(Event)
}

// Run блокируется до отмены ctx. Переподключение выполняет pq.Listener.
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.DSN, minReconnectInterval, maxReconnectInterval, logListenerEvent)
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("can't listen on %s: %w", Channel, err)
	}
	slog.Info("listening for events", slog.String("channel", Channel))

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case n := <-listener.Notify:
			// nil приходит после переподключения
			if n == nil {
				continue
			}
			l.dispatch(n.Extra)

		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				slog.Error("listener ping failed", slog.Any("error", err))
			}
		}
	}
}

func (l *Listener) dispatch(payload string) {
	ev, err := decodeEvent(payload)
	if err != nil {
		slog.Error("can't decode event", slog.String("payload", payload), slog.Any("error", err))
		return
	}
	l.Handler(ev)
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func logListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		slog.Debug("listener connected")
	case pq.ListenerEventDisconnected:
		slog.Warn("listener disconnected", slog.Any("error", err))
	case pq.ListenerEventReconnected:
		slog.Info("listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		slog.Error("listener connection attempt failed", slog.Any("error", err))
	}
}
