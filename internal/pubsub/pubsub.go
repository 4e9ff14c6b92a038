package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
)

// RecordChangeEvent is a change notification from the records table.
type RecordChangeEvent struct {
	RecordType string
	Operation  string // INSERT, UPDATE, DELETE
	RecordID   string
}

// RecordChangeHandler is a callback for record changes.
type RecordChangeHandler func(event RecordChangeEvent)

// PubSub listens on the Postgres record_changes channel, fed by a
// trigger on the records table, and fans events out to subscribers.
type PubSub struct {
	connStr  string
	listener *pq.Listener
	handlers []RecordChangeHandler
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(connStr string) *PubSub {
	ctx, cancel := context.WithCancel(context.Background())

	return &PubSub{
		connStr:  connStr,
		handlers: make([]RecordChangeHandler, 0),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe adds a handler for record change events.
func (ps *PubSub) Subscribe(handler RecordChangeHandler) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.handlers = append(ps.handlers, handler)
}

// Start begins listening for notifications.
func (ps *PubSub) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("PubSub listener error", slog.Any("error", err))
		}
		if ev == pq.ListenerEventConnectionAttemptFailed {
			slog.Warn("PubSub connection attempt failed, will retry")
		}
		if ev == pq.ListenerEventDisconnected {
			slog.Warn("PubSub disconnected, will attempt reconnect")
		}
		if ev == pq.ListenerEventReconnected {
			slog.Info("PubSub reconnected; notifications sent meanwhile were missed")
		}
	}

	ps.listener = pq.NewListener(ps.connStr, 10*time.Second, time.Minute, reportProblem)

	if err := ps.listener.Listen("record_changes"); err != nil {
		return fmt.Errorf("failed to listen on record_changes channel: %w", err)
	}

	slog.Info("PubSub started listening for record changes")

	go ps.processNotifications()

	return nil
}

// Stop closes the listener.
func (ps *PubSub) Stop() {
	ps.cancel()
	if ps.listener != nil {
		ps.listener.Close()
	}
	slog.Info("PubSub stopped")
}

func (ps *PubSub) processNotifications() {
	for {
		select {
		case <-ps.ctx.Done():
			return
		case notification := <-ps.listener.Notify:
			if notification == nil {
				// Connection lost, handled by the reportProblem callback
				continue
			}

			// Payload: "record_type:operation:record_id"
			parts := strings.SplitN(notification.Extra, ":", 3)
			if len(parts) != 3 {
				slog.Warn("Invalid notification payload", slog.String("payload", notification.Extra))
				continue
			}

			event := RecordChangeEvent{
				RecordType: parts[0],
				Operation:  parts[1],
				RecordID:   parts[2],
			}

			slog.Debug("Received record change notification",
				slog.String("type", event.RecordType),
				slog.String("operation", event.Operation),
				slog.String("id", event.RecordID))

			ps.notifyHandlers(event)
		}
	}
}

func (ps *PubSub) notifyHandlers(event RecordChangeEvent) {
	ps.mu.RLock()
	handlers := make([]RecordChangeHandler, len(ps.handlers))
	copy(handlers, ps.handlers)
	ps.mu.RUnlock()

	for _, handler := range handlers {
		// Handlers run in goroutines so a slow one can not block the
		// notification loop.
		go handler(event)
	}
}
