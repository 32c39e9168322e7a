package services

import (
	"context"
	"fmt"
	"time"

	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/restoration"
	"heritage-gallery-backend/internal/sessions"
)

// Restorer runs super-resolution or restoration on an image.
type Restorer interface {
	FetchImage(ctx context.Context, url string) (restoration.Image, error)
	Process(ctx context.Context, img restoration.Image, processType models.ProcessingType, intensity int) (*restoration.ProcessResponse, error)
}

// ProcessingService enhances the original image of a processing session and
// records the result on the session.
type ProcessingService struct {
	sessions *SessionService
	restorer Restorer
	images   ImageStore
	now      func() time.Time
}

// NewProcessingService returns a service that fails with
// models.ErrUnavailable when restorer is nil. Inline results are kept as
// data URLs when images is nil.
func NewProcessingService(sessions *SessionService, restorer Restorer, images ImageStore) *ProcessingService {
	return &ProcessingService{
		sessions: sessions,
		restorer: restorer,
		images:   images,
		now:      time.Now,
	}
}

func (s *ProcessingService) Process(ctx context.Context, ownerID, sessionID string, req models.ProcessSessionRequest) (gallery.Session, error) {
	if s.restorer == nil {
		return gallery.Session{}, fmt.Errorf("image processing: %w", models.ErrUnavailable)
	}
	if !req.ProcessType.Valid() {
		return gallery.Session{}, fmt.Errorf("%w: processType %q", models.ErrInvalidField, req.ProcessType)
	}

	entry, err := s.sessions.Get(ctx, ownerID, models.KindProcessing, sessionID)
	if err != nil {
		return gallery.Session{}, err
	}
	if entry.Processing.OriginalImageURL == "" {
		return gallery.Session{}, models.ErrNoOriginalImage
	}

	img, err := s.restorer.FetchImage(ctx, entry.Processing.OriginalImageURL)
	if err != nil {
		return gallery.Session{}, fmt.Errorf("load original image: %w", err)
	}

	res, err := s.restorer.Process(ctx, img, req.ProcessType, req.Intensity)
	if err != nil {
		return gallery.Session{}, err
	}

	processedURL, err := s.store(ownerID, sessionID, req.ProcessType, res.ProcessedImageURL)
	if err != nil {
		return gallery.Session{}, err
	}

	return s.sessions.Update(ctx, ownerID, models.KindProcessing, sessionID, sessions.Fields{
		"processedImageUrl": processedURL,
		"processingType":    req.ProcessType,
	})
}

// store moves an inline result into object storage and returns the URL to
// record on the session.
func (s *ProcessingService) store(ownerID, sessionID string, processType models.ProcessingType, url string) (string, error) {
	if s.images == nil || !restoration.IsDataURL(url) {
		return url, nil
	}

	data, mediaType, err := restoration.DecodeDataURL(url)
	if err != nil {
		return "", fmt.Errorf("decode processed image: %w", err)
	}
	filename := fmt.Sprintf("%s_%s%s", processType, s.now().UTC().Format("20060102_150405"), restoration.ExtensionFor(mediaType))
	_, publicURL, err := s.images.Upload(ownerID, "sessions/"+sessionID, filename, mediaType, data)
	if err != nil {
		return "", fmt.Errorf("store processed image: %w", err)
	}
	return publicURL, nil
}
