package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/PabloGalante/rumbo-agent/internal/app/geofilter"
	"github.com/PabloGalante/rumbo-agent/internal/app/location"
	"github.com/PabloGalante/rumbo-agent/internal/domain"
	"github.com/PabloGalante/rumbo-agent/internal/observability"
)

const welcomeText = "Hi, I'm Rumbo. Where are you headed today?"

// Registry keeps the live sessions of the process.
type Registry interface {
	Put(id domain.SessionID, s *Session)
	Get(id domain.SessionID) (*Session, bool)
	Delete(id domain.SessionID)
}

// DeviceFeed is a location source the API feeds with client-reported events.
type DeviceFeed interface {
	domain.LocationSource
	Publish(ev domain.LocationEvent)
}

// Options tunes sessions created by the Service.
type Options struct {
	Thresholds    geofilter.Thresholds
	Location      location.Options
	AnswerTimeout time.Duration
	Limiter       *rate.Limiter

	// NewFeed creates the location source of a new session; nil disables location.
	NewFeed func() DeviceFeed
}

type Service struct {
	answerer     domain.AnsweringService
	instructions InstructionBuilder
	registry     Registry
	opts         Options
	now          func() time.Time
}

func NewService(
	answerer domain.AnsweringService,
	instructions InstructionBuilder,
	registry Registry,
	opts Options,
) *Service {
	return &Service{
		answerer:     answerer,
		instructions: instructions,
		registry:     registry,
		opts:         opts,
		now:          time.Now,
	}
}

type StartSessionInput struct {
	UserID      domain.UserID
	Preferences *domain.Preferences
}

type StartSessionOutput struct {
	Session domain.Session
	Welcome domain.Message
}

func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*StartSessionOutput, error) {
	now := s.now()

	log := observability.LoggerFromContext(ctx).With("user_id", in.UserID)
	log.Info("starting new session")

	prefs := domain.DefaultPreferences()
	if in.Preferences != nil {
		if !in.Preferences.RouteGoal.Valid() {
			return nil, fmt.Errorf("%w: unknown route goal %q", domain.ErrInvalidPreferences, in.Preferences.RouteGoal)
		}
		prefs = *in.Preferences
	}

	info := domain.Session{
		ID:        domain.SessionID(uuid.NewString()),
		UserID:    in.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	sess := NewSession(info, prefs, s.opts.Thresholds, SessionDeps{
		Answerer:      s.answerer,
		Instructions:  s.instructions,
		AnswerTimeout: s.opts.AnswerTimeout,
		Limiter:       s.opts.Limiter,
		Now:           s.now,
	})

	if s.opts.NewFeed != nil {
		feed := s.opts.NewFeed()
		sess.feed = feed
		w := location.NewWatcher(feed, sess.Tracker(), s.opts.Location, log.With("session_id", info.ID))
		w.Start(sess.Context())
	}

	welcome := sess.newMessage(domain.RoleModel, welcomeText)
	sess.Conversation().Append(welcome)

	s.registry.Put(info.ID, sess)

	log.Info("session started", "session_id", info.ID)

	return &StartSessionOutput{
		Session: info,
		Welcome: welcome,
	}, nil
}

func (s *Service) session(id domain.SessionID) (*Session, error) {
	sess, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return sess, nil
}

type SendMessageInput struct {
	SessionID domain.SessionID
	Text      string
}

type SendMessageOutput struct {
	UserMessage  domain.Message
	ModelMessage domain.Message
}

func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	sess, err := s.session(in.SessionID)
	if err != nil {
		return nil, err
	}

	log := observability.LoggerFromContext(ctx).With("session_id", in.SessionID)
	log.Info("sending message", "text_len", len(in.Text))

	res, err := sess.Submit(ctx, in.Text)
	if err != nil {
		return nil, err
	}

	return &SendMessageOutput{
		UserMessage:  res.UserMessage,
		ModelMessage: res.ModelMessage,
	}, nil
}

// Timeline is the read model of a session.
type Timeline struct {
	Session     domain.Session
	Messages    []domain.Message
	Preferences domain.Preferences
	Loading     bool
	Location    *domain.PositionFix
}

func (s *Service) GetSessionTimeline(ctx context.Context, id domain.SessionID) (*Timeline, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", id)

	sess, err := s.session(id)
	if err != nil {
		log.Info("session not found")
		return nil, err
	}

	tl := &Timeline{
		Session:     sess.Info(),
		Messages:    sess.Conversation().Messages(),
		Preferences: sess.Preferences().Get(),
		Loading:     sess.Conversation().Loading(),
	}
	if fix, ok := sess.Tracker().Last(); ok {
		tl.Location = &fix
	}

	log.Info("fetched session timeline", "message_count", len(tl.Messages))
	return tl, nil
}

func (s *Service) GetPreferences(ctx context.Context, id domain.SessionID) (domain.Preferences, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.Preferences{}, err
	}
	return sess.Preferences().Get(), nil
}

func (s *Service) UpdatePreferences(ctx context.Context, id domain.SessionID, next domain.Preferences) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}

	if err := sess.Preferences().Set(next); err != nil {
		return err
	}

	observability.LoggerFromContext(ctx).Info("preferences updated",
		"session_id", id,
		"route_goal", next.RouteGoal,
		"accessibility_required", next.AccessibilityRequired,
		"use_location", next.UseLocation,
	)
	return nil
}

// ReportLocation forwards a device fix to the session's location watcher.
// Whether it becomes the session's position is up to the jitter filter.
func (s *Service) ReportLocation(ctx context.Context, id domain.SessionID, fix domain.PositionFix) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	if sess.feed == nil {
		return nil
	}
	if fix.CapturedAt.IsZero() {
		fix.CapturedAt = s.now()
	}
	sess.feed.Publish(domain.LocationEvent{Fix: fix})
	return nil
}

// ReportLocationError forwards a device geolocation error. It never fails the session.
func (s *Service) ReportLocationError(ctx context.Context, id domain.SessionID, lerr *domain.LocationError) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	if sess.feed == nil || lerr == nil {
		return nil
	}
	sess.feed.Publish(domain.LocationEvent{Err: lerr})
	return nil
}

// EndSession closes the session and forgets it.
func (s *Service) EndSession(ctx context.Context, id domain.SessionID) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}

	s.registry.Delete(id)
	sess.Close()

	observability.LoggerFromContext(ctx).Info("session ended", "session_id", id)
	return nil
}
