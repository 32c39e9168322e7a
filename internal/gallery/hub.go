package gallery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const eventBuffer = 16

// Fetcher loads the merged session list of an owner. previous is the view's
// last snapshot, available for carrying sessions over a partial failure.
type Fetcher interface {
	Fetch(ctx context.Context, ownerID string, previous []Session) (Snapshot, error)
}

type EventKind string

const (
	EventWatch    EventKind = "watch"
	EventSessions EventKind = "sessions"
	EventToast    EventKind = "toast"
)

type Event struct {
	Kind EventKind
	Data any
}

type WatchInfo struct {
	WatchID string `json:"watchId"`
}

type Toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// View is one live gallery: the merged list of an owner's sessions kept
// fresh by a Refresher and streamed as events.
type View struct {
	ID      string
	OwnerID string

	refresher   *Refresher
	events      chan Event
	done        chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

func (v *View) Refresher() *Refresher { return v.refresher }

// Events delivers the view's events. It is never closed; stop reading when
// Done is closed.
func (v *View) Events() <-chan Event { return v.events }

func (v *View) Done() <-chan struct{} { return v.done }

func (v *View) Success(message string) {
	v.emit(Event{Kind: EventToast, Data: Toast{Level: "success", Message: message}})
}

func (v *View) Error(message string) {
	v.emit(Event{Kind: EventToast, Data: Toast{Level: "error", Message: message}})
}

func (v *View) publish(snap Snapshot) {
	v.emit(Event{Kind: EventSessions, Data: snap})
}

// emit never blocks; events are dropped when the reader falls behind.
func (v *View) emit(ev Event) {
	select {
	case <-v.done:
		return
	default:
	}
	select {
	case v.events <- ev:
	default:
		slog.Debug("gallery event dropped", "watch_id", v.ID, "kind", string(ev.Kind))
	}
}

func (v *View) close() {
	v.closeOnce.Do(func() {
		v.unsubscribe()
		v.refresher.Close()
		close(v.done)
	})
}

// Hub owns the live views of all owners.
type Hub struct {
	bus     *Bus
	fetcher Fetcher
	opts    Options

	mu    sync.Mutex
	views map[string]*View
}

func NewHub(bus *Bus, fetcher Fetcher, opts Options) *Hub {
	return &Hub{
		bus:     bus,
		fetcher: fetcher,
		opts:    opts,
		views:   make(map[string]*View),
	}
}

// Open starts a view for ownerID: it subscribes to the owner's refresh
// events, starts the periodic timer and issues the first fetch.
func (h *Hub) Open(ownerID string) *View {
	v := &View{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
	}

	var refresher *Refresher
	fetch := func(ctx context.Context) (Snapshot, error) {
		return h.fetcher.Fetch(ctx, ownerID, refresher.Snapshot().Sessions)
	}
	refresher = NewRefresher(fetch, v, v.publish, h.opts)
	v.refresher = refresher

	v.unsubscribe = h.bus.Subscribe(func(ev RefreshRequested) {
		if ev.OwnerID == ownerID {
			refresher.Refresh(RequestFor(TriggerExternal))
		}
	})

	h.mu.Lock()
	h.views[v.ID] = v
	h.mu.Unlock()

	go refresher.Run(context.Background())

	v.emit(Event{Kind: EventWatch, Data: WatchInfo{WatchID: v.ID}})
	refresher.Refresh(RequestFor(TriggerMount))

	slog.Info("gallery view opened", "watch_id", v.ID, "owner_id", ownerID)
	return v
}

// Get returns the view with id if it belongs to ownerID.
func (h *Hub) Get(id, ownerID string) (*View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, ok := h.views[id]
	if !ok || v.OwnerID != ownerID {
		return nil, false
	}
	return v, true
}

func (h *Hub) Close(id string) {
	h.mu.Lock()
	v, ok := h.views[id]
	delete(h.views, id)
	h.mu.Unlock()

	if ok {
		v.close()
		slog.Info("gallery view closed", "watch_id", id, "owner_id", v.OwnerID)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.views)
}

func (h *Hub) Shutdown() {
	h.mu.Lock()
	views := h.views
	h.views = make(map[string]*View)
	h.mu.Unlock()

	for _, v := range views {
		v.close()
	}
}
