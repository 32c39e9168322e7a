package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/sessions"
)

func TestSessionService_CreatePublishesRefresh(t *testing.T) {
	f := newFixture(t)

	p := f.createProcessing(t, "user-1", "relic")
	s := f.createSciFi(t, "user-1", "Starship Log")

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "user-1", s.UserID)
	assert.True(t, p.IsActive)
	assert.Equal(t, []string{"user-1", "user-1"}, f.Events())
}

func TestSessionService_List(t *testing.T) {
	f := newFixture(t)
	f.createProcessing(t, "user-1", "relic")
	f.createProcessing(t, "user-1", "mosaic")
	f.createSciFi(t, "user-1", "Starship Log")

	list, err := f.sessions.List(context.Background(), "user-1", models.KindProcessing)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.sessions.List(context.Background(), "user-1", models.SessionKind("artifacts"))
	assert.ErrorIs(t, err, models.ErrInvalidKind)
}

func TestSessionService_ForeignSessionsAreNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcessing(t, "user-1", "relic")

	_, err := f.sessions.Get(ctx, "user-2", models.KindProcessing, p.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	_, err = f.sessions.Update(ctx, "user-2", models.KindProcessing, p.ID, sessions.Fields{"name": "stolen"})
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	_, err = f.sessions.AppendMessage(ctx, "user-2", models.KindProcessing, p.ID, models.AppendMessageRequest{Role: models.RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	err = f.sessions.Delete(ctx, "user-2", models.KindProcessing, p.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	got, err := f.sessions.Get(ctx, "user-1", models.KindProcessing, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "relic", got.Processing.Name)
	assert.Equal(t, []string{"user-1"}, f.Events())
}

func TestSessionService_Update(t *testing.T) {
	f := newFixture(t)
	s := f.createSciFi(t, "user-1", "Starship Log")

	got, err := f.sessions.Update(context.Background(), "user-1", models.KindSciFi, s.ID, sessions.Fields{
		"civilization": "Atlantean",
		"tags":         []string{"ocean"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Atlantean", got.SciFi.Civilization)
	assert.Equal(t, []string{"ocean"}, got.SciFi.Tags)
	assert.Equal(t, "Starship Log", got.SciFi.Title)
	assert.Len(t, f.Events(), 2)
}

func TestSessionService_UpdateRejectsUnknownField(t *testing.T) {
	f := newFixture(t)
	p := f.createProcessing(t, "user-1", "relic")

	_, err := f.sessions.Update(context.Background(), "user-1", models.KindProcessing, p.ID, sessions.Fields{"colour": "red"})

	assert.ErrorIs(t, err, models.ErrInvalidField)
	assert.Len(t, f.Events(), 1)
}

func TestSessionService_DeleteRemovesFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcessing(t, "user-1", "relic")

	require.NoError(t, f.sessions.Delete(ctx, "user-1", models.KindProcessing, p.ID))

	_, err := f.sessions.Get(ctx, "user-1", models.KindProcessing, p.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	assert.Equal(t, []string{"user-1/" + p.ID}, f.images.deleted)
	assert.Len(t, f.Events(), 2)

	require.NoError(t, f.sessions.Delete(ctx, "user-1", models.KindProcessing, p.ID))
	assert.Len(t, f.Events(), 2)
}

func TestSessionService_DeleteSucceedsWhenFileCleanupFails(t *testing.T) {
	f := newFixture(t)
	f.images.deleteFn = func() error { return assert.AnError }
	s := f.createSciFi(t, "user-1", "Starship Log")

	err := f.sessions.Delete(context.Background(), "user-1", models.KindSciFi, s.ID)

	assert.NoError(t, err)
}

func TestSessionService_AppendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcessing(t, "user-1", "relic")
	s := f.createSciFi(t, "user-1", "Starship Log")

	got, err := f.sessions.AppendMessage(ctx, "user-1", models.KindProcessing, p.ID, models.AppendMessageRequest{
		Role:     models.RoleUser,
		Content:  "Can you sharpen the inscription?",
		ImageURL: "https://cdn.test/detail.jpg",
	})
	require.NoError(t, err)
	require.Len(t, got.Processing.ChatMessages, 1)
	msg := got.Processing.ChatMessages[0]
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "user-1", msg.UserID)
	assert.Equal(t, "https://cdn.test/detail.jpg", msg.ImageURL)
	assert.False(t, msg.CreatedAt.IsZero())

	got, err = f.sessions.AppendMessage(ctx, "user-1", models.KindSciFi, s.ID, models.AppendMessageRequest{
		Role:    models.RoleAssistant,
		Content: "The lighthouse keeper was the last of her kind.",
		Type:    models.SciFiStoryConcept,
	})
	require.NoError(t, err)
	require.Len(t, got.SciFi.Messages, 1)
	assert.Equal(t, models.SciFiStoryConcept, got.SciFi.Messages[0].Type)
	assert.False(t, got.SciFi.Messages[0].Timestamp.IsZero())

	assert.Len(t, f.Events(), 4)
}

func TestSessionService_Refresh(t *testing.T) {
	f := newFixture(t)

	f.sessions.Refresh("user-9")

	assert.Equal(t, []string{"user-9"}, f.Events())
}
