package llm

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

const tracerName = "github.com/PabloGalante/rumbo-agent/internal/adapters/llm"

// GeminiConfig selects the backend. With UseVertex the client authenticates
// with application default credentials for Project/Location, otherwise with APIKey.
type GeminiConfig struct {
	APIKey    string
	UseVertex bool
	Project   string
	Location  string
	Model     string
}

// GeminiClient answers trip-planning queries with Gemini, grounded on
// Google Search and Google Maps.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a domain.AnsweringService backed by Gemini.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{}
	if cfg.UseVertex {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("project and location are required for Vertex AI")
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("an API key is required for the Gemini API")
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// Ask implements domain.AnsweringService.
func (g *GeminiClient) Ask(ctx context.Context, q domain.Query) (domain.Answer, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "GeminiClient.Ask", trace.WithAttributes(
		attribute.String("llm.model", g.modelName),
		attribute.Int("llm.history_turns", len(q.History)),
		attribute.Bool("llm.maps_enabled", q.Tools.MapsEnabled),
		attribute.Bool("llm.has_location", q.Tools.FocusLatLng != nil),
	))
	defer span.End()

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, buildContents(q), buildConfig(q))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		return domain.Answer{}, fmt.Errorf("%w: gemini generate content: %v", domain.ErrServiceUnavailable, err)
	}

	answer, err := answerFromResponse(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unusable response")
		return domain.Answer{}, err
	}

	span.SetAttributes(
		attribute.Int("llm.response_length", len(answer.Text)),
		attribute.Int("llm.citations", len(answer.Citations)),
	)
	span.SetStatus(codes.Ok, "")
	return answer, nil
}

// buildContents maps history plus the live text to genai contents.
// Leading model turns (the welcome message) are dropped: a conversation
// sent to the model starts with the user.
func buildContents(q domain.Query) []*genai.Content {
	contents := make([]*genai.Content, 0, len(q.History)+1)
	for _, turn := range q.History {
		var role genai.Role = genai.RoleUser
		if turn.Role == domain.RoleModel {
			if len(contents) == 0 {
				continue
			}
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return append(contents, genai.NewContentFromText(q.Text, genai.RoleUser))
}

func buildConfig(q domain.Query) *genai.GenerateContentConfig {
	temp := float32(0.4)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(q.Instruction, genai.RoleUser),
		Temperature:       &temp,
	}

	if q.Tools.SearchEnabled {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if q.Tools.MapsEnabled {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleMaps: &genai.GoogleMaps{}})

		if ll := q.Tools.FocusLatLng; ll != nil {
			cfg.ToolConfig = &genai.ToolConfig{
				RetrievalConfig: &genai.RetrievalConfig{
					LatLng: &genai.LatLng{
						Latitude:  genai.Ptr(ll.Latitude),
						Longitude: genai.Ptr(ll.Longitude),
					},
				},
			}
		}
	}
	return cfg
}

// answerFromResponse extracts the text and grounding chunks of the first candidate.
func answerFromResponse(res *genai.GenerateContentResponse) (domain.Answer, error) {
	if res == nil || len(res.Candidates) == 0 {
		return domain.Answer{}, fmt.Errorf("%w: gemini returned no candidates", domain.ErrServiceUnavailable)
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return domain.Answer{}, fmt.Errorf("%w: gemini returned empty text", domain.ErrServiceUnavailable)
	}

	answer := domain.Answer{Text: text}

	gm := res.Candidates[0].GroundingMetadata
	if gm == nil {
		return answer, nil
	}
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil {
			continue
		}
		switch {
		case chunk.Maps != nil && chunk.Maps.URI != "":
			answer.Citations = append(answer.Citations, domain.Citation{
				Kind:  domain.CitationMap,
				URI:   chunk.Maps.URI,
				Title: chunk.Maps.Title,
			})
		case chunk.Web != nil && chunk.Web.URI != "":
			answer.Citations = append(answer.Citations, domain.Citation{
				Kind:  domain.CitationWeb,
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}
	return answer, nil
}
