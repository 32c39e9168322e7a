package sqlite_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/sessions"
	"heritage-gallery-backend/internal/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "data", "gallery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var mu sync.Mutex
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})
	return store
}

func docIDs(docs []sessions.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	doc, err := store.Create(ctx, sessions.ProcessingSessions, "user-1", json.RawMessage(`{"name":"Amphora"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "user-1", doc.OwnerID)
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)

	got, err := store.Get(ctx, sessions.ProcessingSessions, doc.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Amphora"}`, string(got.Data))

	_, err = store.Get(ctx, sessions.SciFiSessions, doc.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestStore_UnknownCollection(t *testing.T) {
	store := newStore(t)

	_, err := store.Create(context.Background(), sessions.Collection{Name: "users; --"}, "user-1", nil)
	assert.Error(t, err)
}

func TestStore_ListByOwner_OrderedAndFallbackAgree(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	coll := sessions.SciFiSessions

	var created []string
	for range 4 {
		doc, err := store.Create(ctx, coll, "user-1", json.RawMessage(`{"title":"x"}`))
		require.NoError(t, err)
		created = append(created, doc.ID)
	}
	_, err := store.Create(ctx, coll, "user-2", nil)
	require.NoError(t, err)

	require.NoError(t, store.Merge(ctx, coll, created[1], sessions.Fields{"title": "edited"}))

	ordered, err := store.ListByOwner(ctx, coll, "user-1", true)
	require.NoError(t, err)
	assert.Equal(t, []string{created[1], created[3], created[2], created[0]}, docIDs(ordered))

	unordered, err := store.ListByOwner(ctx, coll, "user-1", false)
	require.NoError(t, err)
	sessions.SortDocuments(unordered)
	assert.Equal(t, docIDs(ordered), docIDs(unordered))
}

func TestStore_MergeKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	coll := sessions.ProcessingSessions

	doc, err := store.Create(ctx, coll, "user-1", json.RawMessage(`{"name":"Coin","tags":["silver"],"chatMessages":[]}`))
	require.NoError(t, err)

	require.NoError(t, store.Merge(ctx, coll, doc.ID, sessions.Fields{
		"description": "Roman denarius",
		"tags":        []string{"silver", "roman"},
	}))

	got, err := store.Get(ctx, coll, doc.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Coin","description":"Roman denarius","tags":["silver","roman"],"chatMessages":[]}`, string(got.Data))
	assert.True(t, got.UpdatedAt.After(doc.UpdatedAt))
	assert.Equal(t, doc.CreatedAt, got.CreatedAt)

	err = store.Merge(ctx, coll, "missing", sessions.Fields{"name": "x"})
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	coll := sessions.ProcessingSessions

	doc, err := store.Create(ctx, coll, "user-1", nil)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, coll, doc.ID))
	assert.ErrorIs(t, store.Delete(ctx, coll, doc.ID), models.ErrSessionNotFound)
}

func TestStore_AppendToArray(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	coll := sessions.SciFiSessions

	doc, err := store.Create(ctx, coll, "user-1", json.RawMessage(`{"title":"Relic","isActive":false}`))
	require.NoError(t, err)

	for _, content := range []string{"first", "second"} {
		err := store.AppendToArray(ctx, coll, doc.ID, "messages",
			map[string]string{"role": "user", "content": content},
			sessions.Fields{"isActive": true})
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, coll, doc.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"title": "Relic",
		"isActive": true,
		"messages": [
			{"role": "user", "content": "first"},
			{"role": "user", "content": "second"}
		]
	}`, string(got.Data))

	err = store.AppendToArray(ctx, coll, "missing", "messages", "x", nil)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestStore_ConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	repo := sessions.NewProcessingRepository(store)

	s, err := repo.Create(ctx, "user-1", &models.ProcessingSession{Name: "Vase", OriginalImageURL: "https://images.test/vase.jpg"})
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			role := models.RoleUser
			if i%2 == 1 {
				role = models.RoleAssistant
			}
			assert.NoError(t, repo.AppendMessage(ctx, s.ID, &models.ChatMessage{UserID: "user-1", Role: role, Content: "hi"}))
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, got.ChatMessages, writers)
	seen := make(map[string]bool)
	for _, m := range got.ChatMessages {
		seen[m.ID] = true
	}
	assert.Len(t, seen, writers)
}
