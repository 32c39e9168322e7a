package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"heritage-gallery-backend/internal/assistant"
	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/restoration"
	"heritage-gallery-backend/internal/services"
	"heritage-gallery-backend/internal/sessions"
)

type fixture struct {
	store      *sessions.MemoryStore
	processing *sessions.ProcessingRepository
	scifi      *sessions.SciFiRepository
	bus        *gallery.Bus
	images     *fakeImages
	sessions   *services.SessionService
	gallery    *services.GalleryService

	mu     sync.Mutex
	events []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  sessions.NewMemoryStore(),
		bus:    gallery.NewBus(),
		images: &fakeImages{},
	}
	f.processing = sessions.NewProcessingRepository(f.store)
	f.scifi = sessions.NewSciFiRepository(f.store)
	f.sessions = services.NewSessionService(f.processing, f.scifi, f.bus, f.images)
	f.gallery = services.NewGalleryService(f.processing, f.scifi)

	unsubscribe := f.bus.Subscribe(func(ev gallery.RefreshRequested) {
		f.mu.Lock()
		f.events = append(f.events, ev.OwnerID)
		f.mu.Unlock()
	})
	t.Cleanup(unsubscribe)
	return f
}

func (f *fixture) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fixture) createProcessing(t *testing.T, owner, name string) *models.ProcessingSession {
	t.Helper()
	p, err := f.sessions.CreateProcessing(context.Background(), owner, models.CreateProcessingSessionRequest{
		Name:             name,
		OriginalImageURL: "https://cdn.test/" + name + ".jpg",
	}.Session())
	require.NoError(t, err)
	return p
}

func (f *fixture) createSciFi(t *testing.T, owner, title string) *models.SciFiSession {
	t.Helper()
	s, err := f.sessions.CreateSciFi(context.Background(), owner, models.CreateSciFiSessionRequest{
		Title: title,
	}.Session())
	require.NoError(t, err)
	return s
}

type upload struct {
	OwnerID     string
	Folder      string
	Filename    string
	ContentType string
	Data        []byte
}

type fakeImages struct {
	mu       sync.Mutex
	uploads  []upload
	deleted  []string
	deleteFn func() error
}

func (f *fakeImages) Upload(ownerID, folder, filename, contentType string, data []byte) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, upload{ownerID, folder, filename, contentType, data})
	path := fmt.Sprintf("users/%s/%s/%s", ownerID, folder, filename)
	return path, "https://storage.test/" + path, nil
}

func (f *fakeImages) DeleteSessionFiles(ownerID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ownerID+"/"+sessionID)
	if f.deleteFn != nil {
		return f.deleteFn()
	}
	return nil
}

type fakeRestorer struct {
	fetched   []string
	processed []models.ProcessingType
	intensity []int
	result    string
	err       error
}

func (f *fakeRestorer) FetchImage(_ context.Context, url string) (restoration.Image, error) {
	f.fetched = append(f.fetched, url)
	return restoration.Image{Filename: "original.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")}, nil
}

func (f *fakeRestorer) Process(_ context.Context, _ restoration.Image, processType models.ProcessingType, intensity int) (*restoration.ProcessResponse, error) {
	f.processed = append(f.processed, processType)
	f.intensity = append(f.intensity, intensity)
	if f.err != nil {
		return nil, f.err
	}
	return &restoration.ProcessResponse{ProcessedImageURL: f.result, Message: "done"}, nil
}

type fakeReplier struct {
	histories [][]assistant.Turn
	prompts   []string
	kinds     []models.SessionKind
	reply     string
	err       error
}

func (f *fakeReplier) Reply(_ context.Context, kind models.SessionKind, history []assistant.Turn, prompt string) (string, error) {
	f.kinds = append(f.kinds, kind)
	f.histories = append(f.histories, history)
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}
