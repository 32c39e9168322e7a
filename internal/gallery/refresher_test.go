package gallery_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: base} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	n.successes = append(n.successes, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	n.errors = append(n.errors, message)
	n.mu.Unlock()
}

func (n *recordingNotifier) Successes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.successes...)
}

func (n *recordingNotifier) Errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func sessionsOf(n int) []gallery.Session {
	p := make([]models.ProcessingSession, n)
	for i := range p {
		p[i] = processing(string(rune('a'+i)), at(i), at(i))
	}
	return gallery.Merge(p, nil)
}

// sizedFetch serves snapshots of the given sizes in order, repeating the last.
func sizedFetch(calls *atomic.Int32, sizes ...int) gallery.FetchFunc {
	return func(context.Context) (gallery.Snapshot, error) {
		i := int(calls.Add(1)) - 1
		if i >= len(sizes) {
			i = len(sizes) - 1
		}
		return gallery.Snapshot{Sessions: sessionsOf(sizes[i])}, nil
	}
}

func TestRequestFor(t *testing.T) {
	tests := []struct {
		trigger     gallery.Trigger
		silent      bool
		interactive bool
	}{
		{gallery.TriggerMount, true, false},
		{gallery.TriggerVisibility, false, false},
		{gallery.TriggerPeriodic, true, false},
		{gallery.TriggerExternal, false, true},
		{gallery.TriggerManual, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.trigger.String(), func(t *testing.T) {
			req := gallery.RequestFor(tt.trigger)
			assert.Equal(t, tt.trigger, req.Trigger)
			assert.Equal(t, tt.silent, req.Silent)
			assert.Equal(t, tt.interactive, req.Interactive)
		})
	}
}

func TestRefresher_VisibilityGatedByThreshold(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	r := gallery.NewRefresher(sizedFetch(&calls, 1), &recordingNotifier{}, nil, gallery.Options{Now: clock.Now})
	defer r.Close()

	require.True(t, r.Refresh(gallery.RequestFor(gallery.TriggerMount)))
	r.Wait()
	assert.Equal(t, base, r.LastFetch())

	r.SetVisible(false)
	clock.Advance(9 * time.Second)
	assert.False(t, r.SetVisible(true))
	r.Wait()
	assert.EqualValues(t, 1, calls.Load())

	r.SetVisible(false)
	clock.Advance(2 * time.Second)
	assert.True(t, r.SetVisible(true))
	r.Wait()
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, base.Add(11*time.Second), r.LastFetch())
}

func TestRefresher_VisibleToVisibleDoesNotFetch(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	r := gallery.NewRefresher(sizedFetch(&calls, 1), &recordingNotifier{}, nil, gallery.Options{Now: clock.Now})
	defer r.Close()

	clock.Advance(time.Minute)
	assert.False(t, r.SetVisible(true))
	r.Wait()
	assert.Zero(t, calls.Load())
}

func TestRefresher_CoalescesRequestsDuringFetch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 8)
	var calls, inFlight, maxInFlight atomic.Int32

	fetch := func(context.Context) (gallery.Snapshot, error) {
		calls.Add(1)
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		started <- struct{}{}
		<-release
		inFlight.Add(-1)
		return gallery.Snapshot{}, nil
	}

	r := gallery.NewRefresher(fetch, &recordingNotifier{}, nil, gallery.Options{})
	defer r.Close()

	require.True(t, r.Refresh(gallery.RequestFor(gallery.TriggerManual)))
	<-started
	assert.Equal(t, gallery.StateFetching, r.State())

	assert.False(t, r.Refresh(gallery.RequestFor(gallery.TriggerPeriodic)))
	assert.False(t, r.Refresh(gallery.RequestFor(gallery.TriggerExternal)))
	assert.False(t, r.Refresh(gallery.RequestFor(gallery.TriggerManual)))

	close(release)
	r.Wait()

	assert.EqualValues(t, 2, calls.Load())
	assert.EqualValues(t, 1, maxInFlight.Load())
}

func TestRefresher_CoalescedSilentRequestsStaySilent(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 8)
	var calls atomic.Int32
	sizes := []int{1, 2, 4}

	fetch := func(context.Context) (gallery.Snapshot, error) {
		i := int(calls.Add(1)) - 1
		started <- struct{}{}
		if i == 1 {
			<-release
		}
		return gallery.Snapshot{Sessions: sessionsOf(sizes[i])}, nil
	}
	notifier := &recordingNotifier{}
	r := gallery.NewRefresher(fetch, notifier, nil, gallery.Options{})
	defer r.Close()

	r.Refresh(gallery.RequestFor(gallery.TriggerMount))
	<-started
	r.Wait()

	// Two silent ticks queued behind a manual fetch stay silent.
	r.Refresh(gallery.RequestFor(gallery.TriggerManual))
	<-started
	r.Refresh(gallery.RequestFor(gallery.TriggerPeriodic))
	r.Refresh(gallery.RequestFor(gallery.TriggerPeriodic))
	close(release)
	<-started
	r.Wait()

	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []string{"1 new session found!"}, notifier.Successes())
}

func TestRefresher_AnnouncesExactDelta(t *testing.T) {
	var calls atomic.Int32
	notifier := &recordingNotifier{}
	r := gallery.NewRefresher(sizedFetch(&calls, 4, 6, 8, 8, 7), notifier, nil, gallery.Options{})
	defer r.Close()

	steps := []gallery.Trigger{
		gallery.TriggerMount,    // 4: first fetch, never announced
		gallery.TriggerManual,   // 6: +2
		gallery.TriggerPeriodic, // 8: silent
		gallery.TriggerExternal, // 8: no change
		gallery.TriggerManual,   // 7: one fewer
	}
	for _, trigger := range steps {
		require.True(t, r.Refresh(gallery.RequestFor(trigger)))
		r.Wait()
	}

	assert.Equal(t, []string{"2 new sessions found!"}, notifier.Successes())
	assert.Len(t, r.Snapshot().Sessions, 7)
}

func TestRefresher_FirstFetchNeverAnnounces(t *testing.T) {
	var calls atomic.Int32
	notifier := &recordingNotifier{}
	r := gallery.NewRefresher(sizedFetch(&calls, 5), notifier, nil, gallery.Options{})
	defer r.Close()

	r.Refresh(gallery.RequestFor(gallery.TriggerManual))
	r.Wait()

	assert.Empty(t, notifier.Successes())
	assert.Len(t, r.Snapshot().Sessions, 5)
}

func TestRefresher_ErrorsReportedOnlyWhenInteractive(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	fail := errors.New("backend unavailable")
	fetch := func(context.Context) (gallery.Snapshot, error) {
		if calls.Add(1) == 1 {
			return gallery.Snapshot{Sessions: sessionsOf(2)}, nil
		}
		return gallery.Snapshot{}, fail
	}
	notifier := &recordingNotifier{}
	var updates atomic.Int32
	r := gallery.NewRefresher(fetch, notifier, func(gallery.Snapshot) { updates.Add(1) }, gallery.Options{Now: clock.Now})
	defer r.Close()

	r.Refresh(gallery.RequestFor(gallery.TriggerMount))
	r.Wait()
	first := r.LastFetch()
	clock.Advance(time.Minute)

	r.Refresh(gallery.RequestFor(gallery.TriggerPeriodic))
	r.Wait()
	assert.Empty(t, notifier.Errors())

	r.Refresh(gallery.RequestFor(gallery.TriggerManual))
	r.Wait()
	assert.Equal(t, []string{"Failed to refresh gallery"}, notifier.Errors())

	assert.Equal(t, first, r.LastFetch())
	assert.Len(t, r.Snapshot().Sessions, 2)
	assert.EqualValues(t, 1, updates.Load())
}

func TestRefresher_StateCooldown(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	r := gallery.NewRefresher(sizedFetch(&calls, 1), &recordingNotifier{}, nil, gallery.Options{Now: clock.Now})
	defer r.Close()

	assert.Equal(t, gallery.StateIdle, r.State())

	r.Refresh(gallery.RequestFor(gallery.TriggerMount))
	r.Wait()
	assert.Equal(t, gallery.StateCooldown, r.State())

	clock.Advance(gallery.DefaultVisibilityThreshold)
	assert.Equal(t, gallery.StateIdle, r.State())
}

func TestRefresher_TickOnlyWhileVisible(t *testing.T) {
	var calls atomic.Int32
	r := gallery.NewRefresher(sizedFetch(&calls, 1), &recordingNotifier{}, nil, gallery.Options{})
	defer r.Close()

	assert.True(t, r.Tick())
	r.Wait()

	r.SetVisible(false)
	assert.False(t, r.Tick())
	r.Wait()
	assert.EqualValues(t, 1, calls.Load())
}

func TestRefresher_RunTicksPeriodically(t *testing.T) {
	var calls atomic.Int32
	r := gallery.NewRefresher(sizedFetch(&calls, 1), &recordingNotifier{}, nil, gallery.Options{Period: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	r.Close()
}

func TestRefresher_CloseDiscardsInFlightResult(t *testing.T) {
	started := make(chan struct{})
	fetch := func(ctx context.Context) (gallery.Snapshot, error) {
		close(started)
		<-ctx.Done()
		return gallery.Snapshot{Sessions: sessionsOf(3)}, nil
	}
	notifier := &recordingNotifier{}
	var updates atomic.Int32
	r := gallery.NewRefresher(fetch, notifier, func(gallery.Snapshot) { updates.Add(1) }, gallery.Options{})

	require.True(t, r.Refresh(gallery.RequestFor(gallery.TriggerManual)))
	<-started
	r.Close()

	assert.Zero(t, updates.Load())
	assert.Empty(t, r.Snapshot().Sessions)
	assert.Empty(t, notifier.Successes())
	assert.False(t, r.Refresh(gallery.RequestFor(gallery.TriggerManual)))
}
