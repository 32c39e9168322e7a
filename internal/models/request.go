package models

type CreateProcessingSessionRequest struct {
	Name             string         `json:"name" binding:"required" example:"Grandmother's portrait"`
	Description      string         `json:"description,omitempty"`
	OriginalImageURL string         `json:"originalImageUrl" binding:"required"`
	ProcessingType   ProcessingType `json:"processingType,omitempty" example:"restoration"`
	Tags             []string       `json:"tags,omitempty"`
}

func (r CreateProcessingSessionRequest) Session() *ProcessingSession {
	return &ProcessingSession{
		Name:             r.Name,
		Description:      r.Description,
		OriginalImageURL: r.OriginalImageURL,
		ProcessingType:   r.ProcessingType,
		ChatMessages:     []ChatMessage{},
		Tags:             nonNil(r.Tags),
	}
}

type CreateSciFiSessionRequest struct {
	Title            string   `json:"title" binding:"required" example:"The Last Lighthouse"`
	Description      string   `json:"description,omitempty"`
	ArtifactImageURL string   `json:"artifactImageUrl,omitempty"`
	OriginalImageURL string   `json:"originalImageUrl,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	StoryGenre       string   `json:"storyGenre,omitempty" example:"space opera"`
	ArtifactType     string   `json:"artifactType,omitempty"`
	Civilization     string   `json:"civilization,omitempty"`
}

func (r CreateSciFiSessionRequest) Session() *SciFiSession {
	return &SciFiSession{
		Title:            r.Title,
		Description:      r.Description,
		ArtifactImageURL: r.ArtifactImageURL,
		OriginalImageURL: r.OriginalImageURL,
		Messages:         []SciFiMessage{},
		Tags:             nonNil(r.Tags),
		StoryGenre:       r.StoryGenre,
		ArtifactType:     r.ArtifactType,
		Civilization:     r.Civilization,
	}
}

// AppendMessageRequest carries a message for either session kind. ImageURL
// applies to processing sessions, Type and HasImageAnalysis to sci-fi ones.
type AppendMessageRequest struct {
	Role             Role             `json:"role" binding:"required,oneof=user assistant" example:"user"`
	Content          string           `json:"content" binding:"required"`
	ImageURL         string           `json:"imageUrl,omitempty"`
	Type             SciFiMessageType `json:"type,omitempty" binding:"omitempty,oneof=story_concept character_development world_building plot_twist"`
	HasImageAnalysis bool             `json:"hasImageAnalysis,omitempty"`
}

type ChatRequest struct {
	Content string `json:"content" binding:"required" example:"Which era is this vase from?"`
}

type ProcessSessionRequest struct {
	ProcessType ProcessingType `json:"processType" binding:"required" example:"super-resolution"`
	// Intensity is a percentage from 1 to 100. Zero selects the default.
	Intensity int `json:"intensity,omitempty" example:"75"`
}

type VisibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
