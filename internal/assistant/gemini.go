// Package assistant answers session conversations with Gemini.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"heritage-gallery-backend/internal/models"
)

const DefaultModel = "gemini-1.5-flash"

const (
	processingInstruction = "You are a museum conservator helping a visitor understand a photographed " +
		"heritage artifact and its restoration. Answer concisely and say when you are unsure."
	scifiInstruction = "You are a science-fiction co-author. Build stories around the visitor's artifact, " +
		"keeping names, places and events consistent with the conversation so far."
)

// Turn is one message of a conversation.
type Turn struct {
	Role    models.Role
	Content string
}

type Gemini struct {
	client    *genai.Client
	modelName string
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Gemini{client: cl, modelName: modelName}, nil
}

func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Reply answers prompt given the earlier turns of a conversation about a
// session of the given kind.
func (g *Gemini) Reply(ctx context.Context, kind models.SessionKind, history []Turn, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(instructionFor(kind))},
	}

	cs := m.StartChat()
	cs.History = toContents(history)

	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func instructionFor(kind models.SessionKind) string {
	if kind == models.KindSciFi {
		return scifiInstruction
	}
	return processingInstruction
}

// toContents maps turns onto Gemini roles, dropping empty messages and
// folding consecutive turns of one speaker into a single content.
func toContents(history []Turn) []*genai.Content {
	var out []*genai.Content
	for _, t := range history {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		role := "user"
		if t.Role == models.RoleAssistant {
			role = "model"
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, genai.Text(t.Content))
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}
	return out
}
