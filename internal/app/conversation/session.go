package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/PabloGalante/rumbo-agent/internal/app/citations"
	"github.com/PabloGalante/rumbo-agent/internal/app/geofilter"
	"github.com/PabloGalante/rumbo-agent/internal/app/preferences"
	"github.com/PabloGalante/rumbo-agent/internal/domain"
	"github.com/PabloGalante/rumbo-agent/internal/observability"
)

// ErrorReplyText is shown instead of any answering service failure.
const ErrorReplyText = "Sorry, I couldn't plan that trip right now. Please try again in a moment."

// InstructionBuilder renders the instruction context sent with every query.
// It must be deterministic: the same preferences and location give the same text.
type InstructionBuilder interface {
	Build(prefs domain.Preferences, loc *domain.PositionFix) (string, error)
}

// State is the explicit turn state machine of a session.
type State int

const (
	StateIdle State = iota
	StateAwaitingResponse
)

func (s State) String() string {
	if s == StateAwaitingResponse {
		return "awaiting_response"
	}
	return "idle"
}

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Answerer     domain.AnsweringService
	Instructions InstructionBuilder

	// AnswerTimeout bounds a single answering call; zero means no bound.
	AnswerTimeout time.Duration
	// Limiter throttles outbound calls across sessions; nil disables it.
	Limiter *rate.Limiter

	Now   func() time.Time
	NewID func() string
}

func (d *SessionDeps) withDefaults() {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = func() string { return uuid.NewString() }
	}
}

// Session owns one conversation, its preferences and its last accepted position.
// At most one turn is answered at a time.
type Session struct {
	deps SessionDeps

	conv    *Conversation
	prefs   *preferences.Store
	tracker *geofilter.Tracker
	feed    DeviceFeed

	// lifetime ends when the session is closed
	lifetime context.Context
	end      context.CancelFunc

	mu     sync.Mutex
	info   domain.Session
	state  State
	closed bool
}

// NewSession creates an idle session. Close must be called to release it.
func NewSession(info domain.Session, prefs domain.Preferences, th geofilter.Thresholds, deps SessionDeps) *Session {
	deps.withDefaults()
	lifetime, end := context.WithCancel(context.Background())

	return &Session{
		deps:     deps,
		conv:     NewConversation(),
		prefs:    preferences.NewStore(prefs),
		tracker:  geofilter.NewTracker(th),
		lifetime: lifetime,
		end:      end,
		info:     info,
	}
}

func (s *Session) ID() domain.SessionID { return s.info.ID }

func (s *Session) Info() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *Session) Conversation() *Conversation     { return s.conv }
func (s *Session) Preferences() *preferences.Store { return s.prefs }
func (s *Session) Tracker() *geofilter.Tracker     { return s.tracker }

// Context is cancelled when the session closes; background work for the
// session (such as location watching) should run under it.
func (s *Session) Context() context.Context { return s.lifetime }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close ends the session. A turn still in flight finishes but its answer is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.end()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SubmitResult holds the two messages a successful turn appended.
type SubmitResult struct {
	UserMessage  domain.Message
	ModelMessage domain.Message
}

// Submit answers one user turn.
//
// Blank text is rejected with domain.ErrEmptyMessage and a turn submitted while
// another is in flight with domain.ErrTurnInProgress; neither touches the
// conversation. Answering failures do not return an error: they are appended
// as an error message.
func (s *Session) Submit(ctx context.Context, text string) (*SubmitResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyMessage
	}

	log := observability.LoggerFromContext(ctx).With("session_id", s.info.ID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}
	if s.state == StateAwaitingResponse {
		s.mu.Unlock()
		log.Info("turn rejected, previous turn still in flight")
		return nil, domain.ErrTurnInProgress
	}
	s.state = StateAwaitingResponse
	history := s.conv.SnapshotExcludingErrors()
	s.mu.Unlock()

	defer s.finishTurn()

	// listeners run synchronously and may call back into the session, so
	// s.mu must not be held here
	userMsg := s.newMessage(domain.RoleUser, text)
	s.conv.Append(userMsg)
	s.conv.SetLoading(true)

	prefs := s.prefs.Get()
	loc := s.locationFor(prefs)

	answer, err := s.ask(ctx, history, prefs, loc, text)

	if s.isClosed() {
		log.Info("session closed while answering, discarding result")
		return nil, domain.ErrSessionClosed
	}

	var reply domain.Message
	if err != nil {
		log.Error("answering service failed", "error", err)
		reply = s.newMessage(domain.RoleModel, ErrorReplyText)
		reply.IsError = true
	} else {
		reply = s.newMessage(domain.RoleModel, answer.Text)
		reply.Citations = citations.Reconcile(answer.Citations)
	}
	s.conv.Append(reply)

	log.Info("turn completed",
		"is_error", reply.IsError,
		"citations", len(reply.Citations),
		"has_location", loc != nil,
	)

	return &SubmitResult{UserMessage: userMsg, ModelMessage: reply}, nil
}

func (s *Session) finishTurn() {
	s.conv.SetLoading(false)

	s.mu.Lock()
	s.state = StateIdle
	s.info.UpdatedAt = s.deps.Now()
	s.mu.Unlock()
}

// locationFor returns a snapshot of the accepted position when the user allows it.
func (s *Session) locationFor(prefs domain.Preferences) *domain.PositionFix {
	if !prefs.UseLocation {
		return nil
	}
	fix, ok := s.tracker.Last()
	if !ok {
		return nil
	}
	return &fix
}

func (s *Session) ask(
	ctx context.Context,
	history []domain.Message,
	prefs domain.Preferences,
	loc *domain.PositionFix,
	text string,
) (domain.Answer, error) {
	instruction, err := s.deps.Instructions.Build(prefs, loc)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("building instructions: %w", err)
	}

	// The call outlives the caller's context (e.g. an HTTP client that went
	// away) but not the session.
	callCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc
	if s.deps.AnswerTimeout > 0 {
		callCtx, cancel = context.WithTimeout(callCtx, s.deps.AnswerTimeout)
	} else {
		callCtx, cancel = context.WithCancel(callCtx)
	}
	defer cancel()
	stop := context.AfterFunc(s.lifetime, cancel)
	defer stop()

	if s.deps.Limiter != nil {
		if err := s.deps.Limiter.Wait(callCtx); err != nil {
			return domain.Answer{}, fmt.Errorf("%w: rate limited: %v", domain.ErrServiceUnavailable, err)
		}
	}

	q := domain.Query{
		History:     toHistory(history),
		Instruction: instruction,
		Text:        text,
		Tools: domain.ToolHints{
			SearchEnabled: true,
			MapsEnabled:   true,
		},
	}
	if loc != nil {
		q.Tools.FocusLatLng = &domain.LatLng{Latitude: loc.Latitude, Longitude: loc.Longitude}
	}

	answer, err := s.deps.Answerer.Ask(callCtx, q)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return domain.Answer{}, fmt.Errorf("%w: no answer within %s", domain.ErrServiceUnavailable, s.deps.AnswerTimeout)
		}
		return domain.Answer{}, err
	}
	return answer, nil
}

func (s *Session) newMessage(role domain.Role, text string) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(s.deps.NewID()),
		SessionID: s.info.ID,
		Role:      role,
		Text:      text,
		CreatedAt: s.deps.Now(),
	}
}

func toHistory(msgs []domain.Message) []domain.HistoryTurn {
	out := make([]domain.HistoryTurn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, domain.HistoryTurn{Role: m.Role, Text: m.Text})
	}
	return out
}
