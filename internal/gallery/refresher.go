package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultVisibilityThreshold = 10 * time.Second
	DefaultPeriod              = 30 * time.Second

	refreshFailedMessage = "Failed to refresh gallery"
)

type State int

const (
	StateIdle State = iota
	StateFetching
	// StateCooldown is idle within the visibility threshold of the last
	// completed fetch.
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateCooldown:
		return "cooldown"
	}
	return "idle"
}

type Trigger int

const (
	TriggerMount Trigger = iota
	TriggerVisibility
	TriggerPeriodic
	TriggerExternal
	TriggerManual
)

func (t Trigger) String() string {
	switch t {
	case TriggerMount:
		return "mount"
	case TriggerVisibility:
		return "visibility"
	case TriggerPeriodic:
		return "periodic"
	case TriggerExternal:
		return "external"
	case TriggerManual:
		return "manual"
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// Request describes one fetch. Silent fetches never announce new sessions;
// only Interactive fetches report failures to the user.
type Request struct {
	Trigger     Trigger
	Silent      bool
	Interactive bool
}

// RequestFor returns the default request for a trigger.
func RequestFor(t Trigger) Request {
	switch t {
	case TriggerMount, TriggerPeriodic:
		return Request{Trigger: t, Silent: true}
	case TriggerVisibility:
		return Request{Trigger: t}
	}
	return Request{Trigger: t, Interactive: true}
}

// coalesce folds a request that arrived during a fetch into the queued one.
// The result is silent only if both are, and interactive if either is.
func (r Request) coalesce(next Request) Request {
	return Request{
		Trigger:     next.Trigger,
		Silent:      r.Silent && next.Silent,
		Interactive: r.Interactive || next.Interactive,
	}
}

// Snapshot is the result of one fetch. Degraded marks a snapshot in which one
// collection could not be read and its previous sessions were carried over.
type Snapshot struct {
	Sessions  []Session `json:"sessions"`
	Degraded  bool      `json:"degraded"`
	FetchedAt time.Time `json:"fetchedAt"`
}

type FetchFunc func(ctx context.Context) (Snapshot, error)

// Notifier shows transient messages to the user. Calls must not block.
type Notifier interface {
	Success(message string)
	Error(message string)
}

type Options struct {
	VisibilityThreshold time.Duration
	Period              time.Duration
	Now                 func() time.Time
}

func (o Options) withDefaults() Options {
	if o.VisibilityThreshold <= 0 {
		o.VisibilityThreshold = DefaultVisibilityThreshold
	}
	if o.Period <= 0 {
		o.Period = DefaultPeriod
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Refresher decides when a gallery view re-fetches its sessions. At most one
// fetch runs at a time; requests made meanwhile collapse into a single
// follow-up fetch.
type Refresher struct {
	fetch    FetchFunc
	notifier Notifier
	onUpdate func(Snapshot)
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	fetching  bool
	pending   *Request
	closed    bool
	visible   bool
	fetched   bool
	lastFetch time.Time
	snapshot  Snapshot
}

// NewRefresher builds a refresher for a visible view. onUpdate receives every
// successful snapshot and may be nil.
func NewRefresher(fetch FetchFunc, notifier Notifier, onUpdate func(Snapshot), opts Options) *Refresher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		fetch:    fetch,
		notifier: notifier,
		onUpdate: onUpdate,
		opts:     opts.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		visible:  true,
	}
}

// Refresh starts a fetch, or queues one behind the fetch in flight. It
// reports whether a new fetch was started.
func (r *Refresher) Refresh(req Request) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	if r.fetching {
		if r.pending == nil {
			r.pending = &req
		} else {
			merged := r.pending.coalesce(req)
			r.pending = &merged
		}
		r.mu.Unlock()
		return false
	}
	r.fetching = true
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(req)
	return true
}

// SetVisible records the view's visibility. Becoming visible requests a
// fetch when at least the visibility threshold has passed since the last
// completed fetch; the return value reports whether it did.
func (r *Refresher) SetVisible(visible bool) bool {
	r.mu.Lock()
	regained := visible && !r.visible
	r.visible = visible
	due := regained && r.opts.Now().Sub(r.lastFetch) >= r.opts.VisibilityThreshold
	r.mu.Unlock()

	if !due {
		return false
	}
	r.Refresh(RequestFor(TriggerVisibility))
	return true
}

// Tick is one beat of the periodic timer: a silent fetch while visible.
func (r *Refresher) Tick() bool {
	r.mu.Lock()
	visible := r.visible
	r.mu.Unlock()

	if !visible {
		return false
	}
	r.Refresh(RequestFor(TriggerPeriodic))
	return true
}

// Run drives the periodic timer until ctx is done or the refresher closes.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fetching {
		return StateFetching
	}
	if r.fetched && r.opts.Now().Sub(r.lastFetch) < r.opts.VisibilityThreshold {
		return StateCooldown
	}
	return StateIdle
}

// Snapshot returns the last successful snapshot.
func (r *Refresher) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

func (r *Refresher) LastFetch() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFetch
}

// Wait blocks until no fetch is running.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

// Close cancels the fetch in flight and discards its result. Later requests
// are ignored.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.pending = nil
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Refresher) run(req Request) {
	defer r.wg.Done()

	for {
		snap, err := r.fetch(r.ctx)
		next, ok := r.complete(req, snap, err)
		if !ok {
			return
		}
		req = next
	}
}

// complete applies a fetch result and returns the queued follow-up, if any.
func (r *Refresher) complete(req Request, snap Snapshot, err error) (Request, bool) {
	r.mu.Lock()
	if r.closed {
		r.fetching = false
		r.mu.Unlock()
		return Request{}, false
	}

	var notice func()
	updated := false
	if err != nil {
		slog.Warn("gallery refresh failed",
			"trigger", req.Trigger.String(),
			"interactive", req.Interactive,
			"error", err,
		)
		if req.Interactive {
			notice = func() { r.notifier.Error(refreshFailedMessage) }
		}
	} else {
		delta := len(snap.Sessions) - len(r.snapshot.Sessions)
		if r.fetched && !req.Silent && delta > 0 {
			msg := newSessionsMessage(delta)
			notice = func() { r.notifier.Success(msg) }
		}
		snap.FetchedAt = r.opts.Now()
		r.snapshot = snap
		r.lastFetch = snap.FetchedAt
		r.fetched = true
		updated = true
	}
	r.mu.Unlock()

	if updated && r.onUpdate != nil {
		r.onUpdate(snap)
	}
	if notice != nil {
		notice()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.pending == nil {
		r.fetching = false
		r.pending = nil
		return Request{}, false
	}
	next := *r.pending
	r.pending = nil
	return next, true
}

func newSessionsMessage(n int) string {
	if n == 1 {
		return "1 new session found!"
	}
	return fmt.Sprintf("%d new sessions found!", n)
}
