package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"heritage-gallery-backend/internal/gallery"
)

// ChangeChannel is the NOTIFY channel written by the session table triggers.
const ChangeChannel = "session_changes"

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// ChangeEvent is the payload of a session change notification.
type ChangeEvent struct {
	Table   string `json:"table"`
	Op      string `json:"op"`
	OwnerID string `json:"owner_id"`
}

// ChangeFeed turns Postgres session change notifications into refresh
// requests, so gallery views see writes made by other processes.
type ChangeFeed struct {
	listener *pq.Listener
	bus      *gallery.Bus
}

func NewChangeFeed(connectionString string, bus *gallery.Bus) (*ChangeFeed, error) {
	listener := pq.NewListener(connectionString, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			slog.Warn("change feed connection problem", "event", int(ev), "error", err)
		case pq.ListenerEventReconnected:
			slog.Info("change feed reconnected")
		}
	})
	if err := listener.Listen(ChangeChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}
	return &ChangeFeed{listener: listener, bus: bus}, nil
}

// Run delivers notifications until ctx is done, then closes the listener.
func (f *ChangeFeed) Run(ctx context.Context) error {
	defer f.listener.Close()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-f.listener.Notify:
			// A nil notification follows a reconnect; changes made while
			// disconnected are picked up by the periodic refresh.
			if n == nil {
				continue
			}
			if err := f.dispatch(n.Extra); err != nil {
				slog.Warn("ignoring malformed change notification", "payload", n.Extra, "error", err)
			}
		case <-ticker.C:
			if err := f.listener.Ping(); err != nil {
				slog.Warn("change feed ping failed", "error", err)
			}
		}
	}
}

func (f *ChangeFeed) dispatch(payload string) error {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return err
	}
	if ev.OwnerID == "" {
		return fmt.Errorf("notification without owner_id")
	}
	slog.Debug("session changed", "table", ev.Table, "op", ev.Op, "owner_id", ev.OwnerID)
	f.bus.Publish(gallery.RefreshRequested{OwnerID: ev.OwnerID})
	return nil
}
