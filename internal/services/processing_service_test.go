package services_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/services"
)

func TestProcessingService_StoresInlineResult(t *testing.T) {
	f := newFixture(t)
	restorer := &fakeRestorer{result: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("restored"))}
	svc := services.NewProcessingService(f.sessions, restorer, f.images)
	p := f.createProcessing(t, "user-1", "relic")

	got, err := svc.Process(context.Background(), "user-1", p.ID, models.ProcessSessionRequest{
		ProcessType: models.ProcessingRestoration,
		Intensity:   40,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{p.OriginalImageURL}, restorer.fetched)
	assert.Equal(t, []int{40}, restorer.intensity)
	require.Len(t, f.images.uploads, 1)
	up := f.images.uploads[0]
	assert.Equal(t, "sessions/"+p.ID, up.Folder)
	assert.Equal(t, "image/png", up.ContentType)
	assert.Equal(t, []byte("restored"), up.Data)
	assert.True(t, strings.HasPrefix(up.Filename, "restoration_"))
	assert.True(t, strings.HasSuffix(up.Filename, ".png"))

	assert.Equal(t, models.ProcessingRestoration, got.Processing.ProcessingType)
	assert.True(t, strings.HasPrefix(got.Processing.ProcessedImageURL, "https://storage.test/users/user-1/sessions/"+p.ID))
}

func TestProcessingService_KeepsRemoteResultURL(t *testing.T) {
	f := newFixture(t)
	restorer := &fakeRestorer{result: "https://cdn.test/out.jpg"}
	svc := services.NewProcessingService(f.sessions, restorer, f.images)
	p := f.createProcessing(t, "user-1", "relic")

	got, err := svc.Process(context.Background(), "user-1", p.ID, models.ProcessSessionRequest{
		ProcessType: models.ProcessingSuperResolution,
	})

	require.NoError(t, err)
	assert.Empty(t, f.images.uploads)
	assert.Equal(t, "https://cdn.test/out.jpg", got.Processing.ProcessedImageURL)
}

func TestProcessingService_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProcessing(t, "user-1", "relic")
	bare, err := f.sessions.CreateProcessing(ctx, "user-1", &models.ProcessingSession{Name: "no image"})
	require.NoError(t, err)

	unconfigured := services.NewProcessingService(f.sessions, nil, f.images)
	_, err = unconfigured.Process(ctx, "user-1", p.ID, models.ProcessSessionRequest{ProcessType: models.ProcessingRestoration})
	assert.ErrorIs(t, err, models.ErrUnavailable)

	restorer := &fakeRestorer{result: "https://cdn.test/out.jpg"}
	svc := services.NewProcessingService(f.sessions, restorer, f.images)

	_, err = svc.Process(ctx, "user-1", p.ID, models.ProcessSessionRequest{ProcessType: "colorize"})
	assert.ErrorIs(t, err, models.ErrInvalidField)

	_, err = svc.Process(ctx, "user-2", p.ID, models.ProcessSessionRequest{ProcessType: models.ProcessingRestoration})
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	_, err = svc.Process(ctx, "user-1", bare.ID, models.ProcessSessionRequest{ProcessType: models.ProcessingRestoration})
	assert.ErrorIs(t, err, models.ErrNoOriginalImage)

	restorer.err = assert.AnError
	_, err = svc.Process(ctx, "user-1", p.ID, models.ProcessSessionRequest{ProcessType: models.ProcessingRestoration})
	assert.ErrorIs(t, err, assert.AnError)
}
