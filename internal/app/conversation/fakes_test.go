package conversation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/rumbo-agent/internal/adapters/llm"
	"github.com/PabloGalante/rumbo-agent/internal/app/conversation"
	"github.com/PabloGalante/rumbo-agent/internal/app/geofilter"
	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

var errBoom = errors.New("quota exceeded: secret-project-123")

// scriptedAnswerer records queries and replies with answer or err.
// When gate is non-nil every call blocks until gate is closed.
type scriptedAnswerer struct {
	mu      sync.Mutex
	queries []domain.Query
	answer  domain.Answer
	err     error

	gate    chan struct{}
	started chan struct{}
}

func (a *scriptedAnswerer) Ask(ctx context.Context, q domain.Query) (domain.Answer, error) {
	a.mu.Lock()
	a.queries = append(a.queries, q)
	gate, started := a.gate, a.started
	a.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Answer{}, ctx.Err()
		}
	}
	return a.answer, a.err
}

func (a *scriptedAnswerer) calls() []domain.Query {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Query(nil), a.queries...)
}

func newSession(t *testing.T, ans domain.AnsweringService, prefs domain.Preferences) *conversation.Session {
	t.Helper()

	pb, err := llm.NewPromptBuilder("")
	require.NoError(t, err)

	s := conversation.NewSession(
		domain.Session{ID: "sess-1", UserID: "traveller", CreatedAt: time.Now()},
		prefs,
		geofilter.DefaultThresholds(),
		conversation.SessionDeps{
			Answerer:      ans,
			Instructions:  pb,
			AnswerTimeout: 5 * time.Second,
		},
	)
	t.Cleanup(s.Close)
	return s
}
