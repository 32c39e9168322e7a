package services

import (
	"context"
	"fmt"

	"heritage-gallery-backend/internal/assistant"
	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/models"
)

// Replier produces the assistant's next message in a session conversation.
type Replier interface {
	Reply(ctx context.Context, kind models.SessionKind, history []assistant.Turn, prompt string) (string, error)
}

type ChatService struct {
	sessions *SessionService
	replier  Replier
}

func NewChatService(sessions *SessionService, replier Replier) *ChatService {
	return &ChatService{sessions: sessions, replier: replier}
}

// Chat appends the user's message, asks the assistant for a reply with the
// session's earlier messages as history, and appends the reply. The user
// message is kept when the assistant fails.
func (s *ChatService) Chat(ctx context.Context, ownerID string, kind models.SessionKind, sessionID, content string) (gallery.Session, error) {
	if s.replier == nil {
		return gallery.Session{}, fmt.Errorf("session chat: %w", models.ErrUnavailable)
	}

	entry, err := s.sessions.Get(ctx, ownerID, kind, sessionID)
	if err != nil {
		return gallery.Session{}, err
	}
	history := historyOf(entry)

	if _, err := s.sessions.AppendMessage(ctx, ownerID, kind, sessionID, models.AppendMessageRequest{
		Role:    models.RoleUser,
		Content: content,
	}); err != nil {
		return gallery.Session{}, err
	}

	reply, err := s.replier.Reply(ctx, kind, history, content)
	if err != nil {
		return gallery.Session{}, fmt.Errorf("assistant reply: %w", err)
	}

	return s.sessions.AppendMessage(ctx, ownerID, kind, sessionID, models.AppendMessageRequest{
		Role:    models.RoleAssistant,
		Content: reply,
	})
}

func historyOf(entry gallery.Session) []assistant.Turn {
	var turns []assistant.Turn
	if entry.Type == gallery.TypeSciFi {
		for _, m := range entry.SciFi.Messages {
			turns = append(turns, assistant.Turn{Role: m.Role, Content: m.Content})
		}
		return turns
	}
	for _, m := range entry.Processing.ChatMessages {
		turns = append(turns, assistant.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}
