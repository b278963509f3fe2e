package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

func TestBuildContents_DropsLeadingModelTurns(t *testing.T) {
	q := domain.Query{
		History: []domain.HistoryTurn{
			{Role: domain.RoleModel, Text: "Hi, where to?"},
			{Role: domain.RoleUser, Text: "Prado museum"},
			{Role: domain.RoleModel, Text: "Take line 1"},
		},
		Text: "And back?",
	}

	contents := buildContents(q)
	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, "Prado museum", contents[0].Parts[0].Text)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "And back?", contents[2].Parts[0].Text)
}

func TestBuildConfig_Tools(t *testing.T) {
	cfg := buildConfig(domain.Query{
		Instruction: "be brief",
		Tools: domain.ToolHints{
			SearchEnabled: true,
			MapsEnabled:   true,
			FocusLatLng:   &domain.LatLng{Latitude: 41.38, Longitude: 2.17},
		},
	})

	require.Len(t, cfg.Tools, 2)
	assert.NotNil(t, cfg.Tools[0].GoogleSearch)
	assert.NotNil(t, cfg.Tools[1].GoogleMaps)
	require.NotNil(t, cfg.ToolConfig)
	assert.Equal(t, 41.38, *cfg.ToolConfig.RetrievalConfig.LatLng.Latitude)
	assert.Equal(t, 2.17, *cfg.ToolConfig.RetrievalConfig.LatLng.Longitude)
	assert.Equal(t, "be brief", cfg.SystemInstruction.Parts[0].Text)

	noLoc := buildConfig(domain.Query{Tools: domain.ToolHints{MapsEnabled: true}})
	assert.Nil(t, noLoc.ToolConfig)
}

func TestAnswerFromResponse(t *testing.T) {
	res := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText("Take the C4 to Atocha.", genai.RoleModel),
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://renfe.com", Title: "Renfe"}},
					{Maps: &genai.GroundingChunkMaps{URI: "https://maps.google.com/?cid=1", Title: "Atocha"}},
					nil,
					{Web: &genai.GroundingChunkWeb{}},
				},
			},
		}},
	}

	answer, err := answerFromResponse(res)
	require.NoError(t, err)
	assert.Equal(t, "Take the C4 to Atocha.", answer.Text)
	assert.Equal(t, []domain.Citation{
		{Kind: domain.CitationWeb, URI: "https://renfe.com", Title: "Renfe"},
		{Kind: domain.CitationMap, URI: "https://maps.google.com/?cid=1", Title: "Atocha"},
	}, answer.Citations)
}

func TestAnswerFromResponse_Empty(t *testing.T) {
	_, err := answerFromResponse(&genai.GenerateContentResponse{})
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)

	_, err = answerFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText("  ", genai.RoleModel)}},
	})
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestMockLLM(t *testing.T) {
	m := NewMockLLM()

	a, err := m.Ask(context.Background(), domain.Query{Text: "Sagrada Familia", Tools: domain.ToolHints{MapsEnabled: true}})
	require.NoError(t, err)
	assert.Contains(t, a.Text, "Sagrada Familia")
	assert.Len(t, a.Citations, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Ask(ctx, domain.Query{Text: "x"})
	require.Error(t, err)
}
