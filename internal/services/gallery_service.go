package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/models"
	"heritage-gallery-backend/internal/sessions"
)

// GalleryService builds the merged gallery list of an owner.
type GalleryService struct {
	processing *sessions.ProcessingRepository
	scifi      *sessions.SciFiRepository
}

func NewGalleryService(processing *sessions.ProcessingRepository, scifi *sessions.SciFiRepository) *GalleryService {
	return &GalleryService{processing: processing, scifi: scifi}
}

// Fetch lists both collections concurrently and merges them. When exactly
// one collection fails, the sessions of that kind are taken from previous
// and the snapshot is marked degraded. It fails only when both do.
func (s *GalleryService) Fetch(ctx context.Context, ownerID string, previous []gallery.Session) (gallery.Snapshot, error) {
	var (
		processing      []models.ProcessingSession
		scifi           []models.SciFiSession
		procErr, sciErr error
		g               errgroup.Group
	)
	// Errors stay with their collection so one failure does not cancel
	// the other query; the switch below decides the outcome.
	g.Go(func() error {
		processing, procErr = s.processing.ListByOwner(ctx, ownerID)
		return nil
	})
	g.Go(func() error {
		scifi, sciErr = s.scifi.ListByOwner(ctx, ownerID)
		return nil
	})
	g.Wait()

	if err := ctx.Err(); err != nil {
		return gallery.Snapshot{}, err
	}

	degraded := false
	switch {
	case procErr != nil && sciErr != nil:
		return gallery.Snapshot{}, fmt.Errorf("fetch gallery: %w", errors.Join(procErr, sciErr))
	case procErr != nil:
		slog.Warn("processing sessions unavailable, keeping previous",
			"owner_id", ownerID,
			"error", procErr,
		)
		processing = previousProcessing(previous)
		degraded = true
	case sciErr != nil:
		slog.Warn("sci-fi sessions unavailable, keeping previous",
			"owner_id", ownerID,
			"error", sciErr,
		)
		scifi = previousSciFi(previous)
		degraded = true
	}

	return gallery.Snapshot{
		Sessions: gallery.Merge(processing, scifi),
		Degraded: degraded,
	}, nil
}

// List is a one-shot fetch narrowed by type and search term.
func (s *GalleryService) List(ctx context.Context, ownerID string, typ gallery.TypeFilter, term string) (gallery.Snapshot, error) {
	snap, err := s.Fetch(ctx, ownerID, nil)
	if err != nil {
		return gallery.Snapshot{}, err
	}
	snap.Sessions = gallery.Filter(snap.Sessions, typ, term)
	snap.FetchedAt = time.Now().UTC()
	return snap, nil
}

func previousProcessing(previous []gallery.Session) []models.ProcessingSession {
	var out []models.ProcessingSession
	for _, s := range gallery.OfType(previous, gallery.TypeProcessing) {
		out = append(out, *s.Processing)
	}
	return out
}

func previousSciFi(previous []gallery.Session) []models.SciFiSession {
	var out []models.SciFiSession
	for _, s := range gallery.OfType(previous, gallery.TypeSciFi) {
		out = append(out, *s.SciFi)
	}
	return out
}

var _ gallery.Fetcher = (*GalleryService)(nil)
