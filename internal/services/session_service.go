package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/sessions"
)

// ImageStore keeps uploaded and processed images in object storage.
type ImageStore interface {
	// Upload stores data under the owner's folder and returns its storage
	// path and public URL.
	Upload(ownerID, folder, filename, contentType string, data []byte) (path, url string, err error)
	DeleteSessionFiles(ownerID, sessionID string) error
}

// SessionService applies session mutations on behalf of an owner and asks
// the owner's gallery views to refresh after each one.
type SessionService struct {
	processing *sessions.ProcessingRepository
	scifi      *sessions.SciFiRepository
	bus        *gallery.Bus
	images     ImageStore
}

// NewSessionService wires the repositories to the refresh bus. images may
// be nil when object storage is not configured.
func NewSessionService(processing *sessions.ProcessingRepository, scifi *sessions.SciFiRepository, bus *gallery.Bus, images ImageStore) *SessionService {
	return &SessionService{
		processing: processing,
		scifi:      scifi,
		bus:        bus,
		images:     images,
	}
}

func (s *SessionService) List(ctx context.Context, ownerID string, kind models.SessionKind) ([]gallery.Session, error) {
	switch kind {
	case models.KindProcessing:
		list, err := s.processing.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		out := make([]gallery.Session, len(list))
		for i := range list {
			out[i] = gallery.ProcessingEntry(&list[i])
		}
		return out, nil
	case models.KindSciFi:
		list, err := s.scifi.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		out := make([]gallery.Session, len(list))
		for i := range list {
			out[i] = gallery.SciFiEntry(&list[i])
		}
		return out, nil
	}
	return nil, models.ErrInvalidKind
}

func (s *SessionService) CreateProcessing(ctx context.Context, ownerID string, session *models.ProcessingSession) (*models.ProcessingSession, error) {
	created, err := s.processing.Create(ctx, ownerID, session)
	if err != nil {
		return nil, err
	}
	s.changed(ownerID)
	return created, nil
}

func (s *SessionService) CreateSciFi(ctx context.Context, ownerID string, session *models.SciFiSession) (*models.SciFiSession, error) {
	created, err := s.scifi.Create(ctx, ownerID, session)
	if err != nil {
		return nil, err
	}
	s.changed(ownerID)
	return created, nil
}

// Get returns the session if it exists and belongs to ownerID; other
// owners' sessions are reported as not found.
func (s *SessionService) Get(ctx context.Context, ownerID string, kind models.SessionKind, id string) (gallery.Session, error) {
	switch kind {
	case models.KindProcessing:
		p, err := ownedBy(ctx, s.processing, ownerID, id)
		if err != nil {
			return gallery.Session{}, err
		}
		return gallery.ProcessingEntry(p), nil
	case models.KindSciFi:
		sc, err := ownedBy(ctx, s.scifi, ownerID, id)
		if err != nil {
			return gallery.Session{}, err
		}
		return gallery.SciFiEntry(sc), nil
	}
	return gallery.Session{}, models.ErrInvalidKind
}

// Update merges fields into the owner's session and returns the result.
func (s *SessionService) Update(ctx context.Context, ownerID string, kind models.SessionKind, id string, fields sessions.Fields) (gallery.Session, error) {
	if _, err := s.Get(ctx, ownerID, kind, id); err != nil {
		return gallery.Session{}, err
	}

	var err error
	switch kind {
	case models.KindProcessing:
		err = s.processing.Update(ctx, id, fields)
	case models.KindSciFi:
		err = s.scifi.Update(ctx, id, fields)
	}
	if err != nil {
		return gallery.Session{}, err
	}
	s.changed(ownerID)
	return s.Get(ctx, ownerID, kind, id)
}

// Delete removes the owner's session and its stored images. A session that
// no longer exists is already deleted.
func (s *SessionService) Delete(ctx context.Context, ownerID string, kind models.SessionKind, id string) error {
	_, err := s.Get(ctx, ownerID, kind, id)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) && !s.existsForOther(ctx, kind, id) {
			return nil
		}
		return err
	}

	switch kind {
	case models.KindProcessing:
		err = s.processing.Remove(ctx, id)
	case models.KindSciFi:
		err = s.scifi.Remove(ctx, id)
	}
	if err != nil {
		return err
	}

	if s.images != nil {
		if err := s.images.DeleteSessionFiles(ownerID, id); err != nil {
			slog.Warn("failed to delete session files",
				"session_id", id,
				"owner_id", ownerID,
				"error", err,
			)
		}
	}
	s.changed(ownerID)
	return nil
}

// AppendMessage adds a message to the owner's session log and returns the
// updated session.
func (s *SessionService) AppendMessage(ctx context.Context, ownerID string, kind models.SessionKind, id string, req models.AppendMessageRequest) (gallery.Session, error) {
	if _, err := s.Get(ctx, ownerID, kind, id); err != nil {
		return gallery.Session{}, err
	}

	var err error
	switch kind {
	case models.KindProcessing:
		err = s.processing.AppendMessage(ctx, id, &models.ChatMessage{
			UserID:   ownerID,
			Role:     req.Role,
			Content:  req.Content,
			ImageURL: req.ImageURL,
		})
	case models.KindSciFi:
		err = s.scifi.AppendMessage(ctx, id, &models.SciFiMessage{
			Role:             req.Role,
			Content:          req.Content,
			Type:             req.Type,
			HasImageAnalysis: req.HasImageAnalysis,
		})
	}
	if err != nil {
		return gallery.Session{}, err
	}
	s.changed(ownerID)
	return s.Get(ctx, ownerID, kind, id)
}

// Refresh asks every gallery view of ownerID to re-fetch.
func (s *SessionService) Refresh(ownerID string) {
	s.changed(ownerID)
}

func (s *SessionService) changed(ownerID string) {
	if s.bus != nil {
		s.bus.Publish(gallery.RefreshRequested{OwnerID: ownerID})
	}
}

// existsForOther reports whether id names a session of another owner.
func (s *SessionService) existsForOther(ctx context.Context, kind models.SessionKind, id string) bool {
	var err error
	switch kind {
	case models.KindProcessing:
		_, err = s.processing.Get(ctx, id)
	case models.KindSciFi:
		_, err = s.scifi.Get(ctx, id)
	default:
		return false
	}
	return err == nil
}

func ownedBy[T any, P sessions.Record[T]](ctx context.Context, repo *sessions.Repository[T, P], ownerID, id string) (*T, error) {
	v, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if P(v).Meta().UserID != ownerID {
		return nil, fmt.Errorf("get %s %s: %w", repo.Collection().Name, id, models.ErrSessionNotFound)
	}
	return v, nil
}
