package llm

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

// MockLLM answers without calling any model. It is used in local mode and tests.
type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) Ask(ctx context.Context, q domain.Query) (domain.Answer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Answer{}, err
	}

	origin := "your current location"
	if q.Tools.FocusLatLng == nil {
		origin = "an unknown origin"
	}

	answer := domain.Answer{
		Text: fmt.Sprintf("Here is a plan from %s for %q:\n\n1. Walk to the nearest station.\n2. Take the first train towards the centre.",
			origin, q.Text),
		Citations: []domain.Citation{
			{Kind: domain.CitationWeb, URI: "https://example.com/service-status", Title: "Service status"},
		},
	}

	if q.Tools.MapsEnabled {
		answer.Citations = append(answer.Citations, domain.Citation{
			Kind:  domain.CitationMap,
			URI:   "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(q.Text),
			Title: q.Text,
		})
	}
	return answer, nil
}
