package assistant

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"heritage-gallery-backend/internal/models"
)

func TestToContents(t *testing.T) {
	history := []Turn{
		{Role: models.RoleUser, Content: "What is this vase?"},
		{Role: models.RoleUser, Content: "It was found near Delphi."},
		{Role: models.RoleAssistant, Content: "It looks like an Attic krater."},
		{Role: models.RoleAssistant, Content: "   "},
		{Role: models.RoleUser, Content: "How old is it?"},
	}

	got := toContents(history)

	require.Len(t, got, 3)
	assert.Equal(t, "user", got[0].Role)
	assert.Equal(t, []genai.Part{genai.Text("What is this vase?"), genai.Text("It was found near Delphi.")}, got[0].Parts)
	assert.Equal(t, "model", got[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("It looks like an Attic krater.")}, got[1].Parts)
	assert.Equal(t, "user", got[2].Role)
}

func TestToContents_Empty(t *testing.T) {
	assert.Empty(t, toContents(nil))
}

func TestInstructionFor(t *testing.T) {
	assert.Equal(t, scifiInstruction, instructionFor(models.KindSciFi))
	assert.Equal(t, processingInstruction, instructionFor(models.KindProcessing))
}
