package conversation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/PabloGalante/rumbo-agent/internal/adapters/llm"
	pushloc "github.com/PabloGalante/rumbo-agent/internal/adapters/location"
	"github.com/PabloGalante/rumbo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/rumbo-agent/internal/app/conversation"
	"github.com/PabloGalante/rumbo-agent/internal/app/geofilter"
	"github.com/PabloGalante/rumbo-agent/internal/app/location"
	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

func newService(t *testing.T, ans domain.AnsweringService) *conversation.Service {
	t.Helper()

	pb, err := llm.NewPromptBuilder("")
	require.NoError(t, err)

	store := memory.NewSessionStore[*conversation.Session](0)
	t.Cleanup(store.Close)

	return conversation.NewService(ans, pb, store, conversation.Options{
		Thresholds:    geofilter.DefaultThresholds(),
		Location:      location.DefaultOptions(),
		AnswerTimeout: 5 * time.Second,
		Limiter:       rate.NewLimiter(rate.Inf, 1),
		NewFeed: func() conversation.DeviceFeed {
			return pushloc.NewPushSource()
		},
	})
}

func TestStartSessionAndSendMessage(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, llm.NewMockLLM())

	out, err := svc.StartSession(ctx, conversation.StartSessionInput{UserID: "test-user"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Session.ID)
	assert.Equal(t, domain.RoleModel, out.Welcome.Role)

	reply, err := svc.SendMessage(ctx, conversation.SendMessageInput{
		SessionID: out.Session.ID,
		Text:      "Plaza Mayor",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reply.ModelMessage.Text)
	assert.False(t, reply.ModelMessage.IsError)

	tl, err := svc.GetSessionTimeline(ctx, out.Session.ID)
	require.NoError(t, err)
	assert.Len(t, tl.Messages, 3)
	assert.False(t, tl.Loading)
	assert.Nil(t, tl.Location)
}

func TestStartSession_InvalidPreferences(t *testing.T) {
	svc := newService(t, llm.NewMockLLM())

	_, err := svc.StartSession(context.Background(), conversation.StartSessionInput{
		UserID:      "u",
		Preferences: &domain.Preferences{RouteGoal: "TELEPORT"},
	})
	require.ErrorIs(t, err, domain.ErrInvalidPreferences)
}

func TestService_UnknownSession(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, llm.NewMockLLM())

	_, err := svc.SendMessage(ctx, conversation.SendMessageInput{SessionID: "nope", Text: "hi"})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.GetSessionTimeline(ctx, "nope")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.ErrorIs(t, svc.EndSession(ctx, "nope"), domain.ErrSessionNotFound)
}

func TestService_Preferences(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, llm.NewMockLLM())

	out, err := svc.StartSession(ctx, conversation.StartSessionInput{UserID: "u"})
	require.NoError(t, err)

	prefs, err := svc.GetPreferences(ctx, out.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPreferences(), prefs)

	next := domain.Preferences{RouteGoal: domain.GoalLeastCrowded, AccessibilityRequired: true}
	require.NoError(t, svc.UpdatePreferences(ctx, out.Session.ID, next))

	prefs, err = svc.GetPreferences(ctx, out.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, next, prefs)

	err = svc.UpdatePreferences(ctx, out.Session.ID, domain.Preferences{RouteGoal: "?"})
	require.ErrorIs(t, err, domain.ErrInvalidPreferences)
}

func TestService_ReportedLocationIsFiltered(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, llm.NewMockLLM())

	out, err := svc.StartSession(ctx, conversation.StartSessionInput{UserID: "u"})
	require.NoError(t, err)
	id := out.Session.ID

	now := time.Now()
	require.NoError(t, svc.ReportLocation(ctx, id, domain.PositionFix{Latitude: 52.52, Longitude: 13.405, CapturedAt: now}))

	require.Eventually(t, func() bool {
		tl, err := svc.GetSessionTimeline(ctx, id)
		return err == nil && tl.Location != nil
	}, time.Second, 5*time.Millisecond)

	// jitter a few meters away is ignored
	require.NoError(t, svc.ReportLocation(ctx, id, domain.PositionFix{Latitude: 52.52001, Longitude: 13.405, CapturedAt: now.Add(time.Second)}))
	// errors are absorbed
	require.NoError(t, svc.ReportLocationError(ctx, id, &domain.LocationError{Code: domain.LocationPermissionDenied}))

	time.Sleep(20 * time.Millisecond)
	tl, err := svc.GetSessionTimeline(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 52.52, tl.Location.Latitude)
	assert.Equal(t, now, tl.Location.CapturedAt)
}

func TestService_EndSessionStopsWatcher(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx := context.Background()
	svc := newService(t, llm.NewMockLLM())

	out, err := svc.StartSession(ctx, conversation.StartSessionInput{UserID: "u"})
	require.NoError(t, err)

	require.NoError(t, svc.EndSession(ctx, out.Session.ID))

	_, err = svc.GetSessionTimeline(ctx, out.Session.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
