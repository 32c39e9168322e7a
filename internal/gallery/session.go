// Package gallery merges the processing and sci-fi session collections into
// one ordered view and keeps that view fresh.
package gallery

import (
	"encoding/json"
	"time"

	"heritage-gallery-backend/internal/models"
)

type SessionType string

const (
	TypeProcessing SessionType = "processing"
	TypeSciFi      SessionType = "scifi"
)

// Session is one entry of the merged gallery list. Exactly one of Processing
// and SciFi is set, matching Type.
type Session struct {
	Type       SessionType
	Processing *models.ProcessingSession
	SciFi      *models.SciFiSession
}

func ProcessingEntry(p *models.ProcessingSession) Session {
	return Session{Type: TypeProcessing, Processing: p}
}

func SciFiEntry(s *models.SciFiSession) Session {
	return Session{Type: TypeSciFi, SciFi: s}
}

func (s Session) meta() *models.SessionMeta {
	if s.Type == TypeSciFi {
		return &s.SciFi.SessionMeta
	}
	return &s.Processing.SessionMeta
}

func (s Session) ID() string { return s.meta().ID }

func (s Session) OwnerID() string { return s.meta().UserID }

func (s Session) EffectiveTime() time.Time { return s.meta().EffectiveTime() }

// DisplayName is the sci-fi title or the processing session name.
func (s Session) DisplayName() string {
	if s.Type == TypeSciFi {
		return s.SciFi.Title
	}
	return s.Processing.Name
}

func (s Session) Description() string {
	if s.Type == TypeSciFi {
		return s.SciFi.Description
	}
	return s.Processing.Description
}

func (s Session) Tags() []string {
	if s.Type == TypeSciFi {
		return s.SciFi.Tags
	}
	return s.Processing.Tags
}

// MarshalJSON flattens the underlying session and adds its sessionType.
func (s Session) MarshalJSON() ([]byte, error) {
	if s.Type == TypeSciFi {
		return json.Marshal(struct {
			*models.SciFiSession
			SessionType SessionType `json:"sessionType"`
		}{s.SciFi, s.Type})
	}
	return json.Marshal(struct {
		*models.ProcessingSession
		SessionType SessionType `json:"sessionType"`
	}{s.Processing, s.Type})
}
