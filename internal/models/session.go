package models

import (
	"fmt"
	"time"
)

type SessionKind string

const (
	KindProcessing SessionKind = "processing"
	KindSciFi      SessionKind = "scifi"
)

func ParseSessionKind(s string) (SessionKind, error) {
	switch SessionKind(s) {
	case KindProcessing, KindSciFi:
		return SessionKind(s), nil
	}
	return "", ErrInvalidKind
}

type ProcessingType string

const (
	ProcessingSuperResolution ProcessingType = "super-resolution"
	ProcessingRestoration     ProcessingType = "restoration"
)

func (t ProcessingType) Valid() bool {
	return t == ProcessingSuperResolution || t == ProcessingRestoration
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SessionMeta holds the fields every stored session carries. The store is
// authoritative for all of them; values decoded from the document body are
// overwritten on read.
type SessionMeta struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *SessionMeta) Meta() *SessionMeta { return m }

// EffectiveTime is updatedAt when set, else createdAt.
func (m *SessionMeta) EffectiveTime() time.Time {
	if !m.UpdatedAt.IsZero() {
		return m.UpdatedAt
	}
	return m.CreatedAt
}

type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m *ChatMessage) Stamp(id string, at time.Time) {
	m.ID = id
	m.CreatedAt = at
}

type ProcessingSession struct {
	SessionMeta
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	OriginalImageURL  string         `json:"originalImageUrl"`
	ProcessedImageURL string         `json:"processedImageUrl,omitempty"`
	ProcessingType    ProcessingType `json:"processingType,omitempty"`
	ChatMessages      []ChatMessage  `json:"chatMessages"`
	Tags              []string       `json:"tags"`
}

// Validate checks the enumerated fields. An empty processingType is absent.
func (s *ProcessingSession) Validate() error {
	if s.ProcessingType != "" && !s.ProcessingType.Valid() {
		return fmt.Errorf("%w: processingType %q", ErrInvalidField, s.ProcessingType)
	}
	return nil
}

type SciFiMessageType string

const (
	SciFiStoryConcept         SciFiMessageType = "story_concept"
	SciFiCharacterDevelopment SciFiMessageType = "character_development"
	SciFiWorldBuilding        SciFiMessageType = "world_building"
	SciFiPlotTwist            SciFiMessageType = "plot_twist"
)

type SciFiMessage struct {
	ID               string           `json:"id,omitempty"`
	Role             Role             `json:"role"`
	Content          string           `json:"content"`
	Timestamp        time.Time        `json:"timestamp"`
	Type             SciFiMessageType `json:"type,omitempty"`
	HasImageAnalysis bool             `json:"hasImageAnalysis,omitempty"`
}

func (m *SciFiMessage) Stamp(id string, at time.Time) {
	m.ID = id
	m.Timestamp = at
}

type SciFiSession struct {
	SessionMeta
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	ArtifactImageURL string         `json:"artifactImageUrl,omitempty"`
	OriginalImageURL string         `json:"originalImageUrl,omitempty"`
	Messages         []SciFiMessage `json:"messages"`
	Tags             []string       `json:"tags"`
	StoryGenre       string         `json:"storyGenre,omitempty"`
	ArtifactType     string         `json:"artifactType,omitempty"`
	Civilization     string         `json:"civilization,omitempty"`
}

// Message is a session message that takes its id and creation time from the
// server at append time.
type Message interface {
	Stamp(id string, at time.Time)
}
