package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/PabloGalante/rumbo-agent/internal/app/citations"
	"github.com/PabloGalante/rumbo-agent/internal/app/conversation"
	"github.com/PabloGalante/rumbo-agent/internal/domain"
	"github.com/PabloGalante/rumbo-agent/internal/observability"
)

type Server struct {
	svc      *conversation.Service
	classify citations.TrafficClassifier
}

// NewServer builds the API router. classify may be nil to use the default keyword matcher.
func NewServer(svc *conversation.Service, classify citations.TrafficClassifier) http.Handler {
	if classify == nil {
		classify = citations.DefaultTrafficClassifier
	}
	s := &Server{svc: svc, classify: classify}

	r := chi.NewRouter()
	r.Use(withRequestID, withLogging, withCORS)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleEndSession)
			r.Post("/messages", s.handleSendMessage)
			r.Get("/preferences", s.handleGetPreferences)
			r.Put("/preferences", s.handleUpdatePreferences)
			r.Post("/location", s.handleReportLocation)
		})
	})

	return r
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type preferencesDTO struct {
	RouteGoal             string `json:"route_goal"`
	AccessibilityRequired bool   `json:"accessibility_required"`
	UseLocation           bool   `json:"use_location"`
}

type createSessionRequest struct {
	UserID      string          `json:"user_id"`
	Preferences *preferencesDTO `json:"preferences,omitempty"`
}

type createSessionResponse struct {
	Session sessionResponse `json:"session"`
	Welcome messageResponse `json:"welcome_message"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type citationResponse struct {
	Kind  string `json:"kind"`
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

type messageResponse struct {
	ID           string             `json:"id"`
	SessionID    string             `json:"session_id"`
	Role         string             `json:"role"`
	Text         string             `json:"text"`
	IsError      bool               `json:"is_error"`
	Citations    []citationResponse `json:"citations"`
	MapEmbed     *citationResponse  `json:"map_embed,omitempty"`
	HeavyTraffic bool               `json:"heavy_traffic,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	UserMessage  messageResponse `json:"user_message"`
	ModelMessage messageResponse `json:"model_message"`
}

type locationResponse struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}

type getSessionResponse struct {
	Session     sessionResponse   `json:"session"`
	Messages    []messageResponse `json:"messages"`
	Preferences preferencesDTO    `json:"preferences"`
	Loading     bool              `json:"loading"`
	Location    *locationResponse `json:"location,omitempty"`
}

type locationErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type reportLocationRequest struct {
	Latitude   *float64          `json:"latitude,omitempty"`
	Longitude  *float64          `json:"longitude,omitempty"`
	Accuracy   float64           `json:"accuracy,omitempty"`
	CapturedAt *time.Time        `json:"captured_at,omitempty"`
	Error      *locationErrorDTO `json:"error,omitempty"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}

	in := conversation.StartSessionInput{UserID: domain.UserID(req.UserID)}
	if req.Preferences != nil {
		p := fromPreferencesDTO(*req.Preferences)
		in.Preferences = &p
	}

	out, err := s.svc.StartSession(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		Session: toSessionResponse(out.Session),
		Welcome: s.toMessageResponse(out.Welcome),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	tl, err := s.svc.GetSessionTimeline(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := getSessionResponse{
		Session:     toSessionResponse(tl.Session),
		Messages:    s.toMessagesResponse(tl.Messages),
		Preferences: toPreferencesDTO(tl.Preferences),
		Loading:     tl.Loading,
	}
	if tl.Location != nil {
		resp.Location = &locationResponse{
			Latitude:   tl.Location.Latitude,
			Longitude:  tl.Location.Longitude,
			CapturedAt: tl.Location.CapturedAt,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.EndSession(r.Context(), sessionID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	out, err := s.svc.SendMessage(r.Context(), conversation.SendMessageInput{
		SessionID: sessionID(r),
		Text:      req.Text,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sendMessageResponse{
		UserMessage:  s.toMessageResponse(out.UserMessage),
		ModelMessage: s.toMessageResponse(out.ModelMessage),
	})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.svc.GetPreferences(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesDTO(prefs))
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	next := fromPreferencesDTO(req)
	if err := s.svc.UpdatePreferences(r.Context(), sessionID(r), next); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferencesDTO(next))
}

func (s *Server) handleReportLocation(w http.ResponseWriter, r *http.Request) {
	var req reportLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	id := sessionID(r)
	var err error
	switch {
	case req.Error != nil:
		err = s.svc.ReportLocationError(r.Context(), id, &domain.LocationError{
			Code:    parseLocationErrorCode(req.Error.Code),
			Message: req.Error.Message,
		})
	case req.Latitude != nil && req.Longitude != nil:
		if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
			badRequest(w, "coordinates out of range")
			return
		}
		fix := domain.PositionFix{
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
			Accuracy:  req.Accuracy,
		}
		if req.CapturedAt != nil {
			fix.CapturedAt = *req.CapturedAt
		}
		err = s.svc.ReportLocation(r.Context(), id, fix)
	default:
		badRequest(w, "latitude and longitude, or error, are required")
		return
	}

	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ─────────────────────────────────────────────
// Conversion helpers
// ─────────────────────────────────────────────

func sessionID(r *http.Request) domain.SessionID {
	return domain.SessionID(chi.URLParam(r, "sessionID"))
}

func toSessionResponse(s domain.Session) sessionResponse {
	return sessionResponse{
		ID:        string(s.ID),
		UserID:    string(s.UserID),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toCitationResponse(c domain.Citation) citationResponse {
	return citationResponse{Kind: string(c.Kind), URI: c.URI, Title: c.Title}
}

func (s *Server) toMessageResponse(m domain.Message) messageResponse {
	resp := messageResponse{
		ID:        string(m.ID),
		SessionID: string(m.SessionID),
		Role:      string(m.Role),
		Text:      m.Text,
		IsError:   m.IsError,
		Citations: make([]citationResponse, 0, len(m.Citations)),
		CreatedAt: m.CreatedAt,
	}
	for _, c := range m.Citations {
		resp.Citations = append(resp.Citations, toCitationResponse(c))
	}
	if mc, ok := citations.FirstMap(m.Citations); ok {
		embed := toCitationResponse(mc)
		resp.MapEmbed = &embed
	}
	if m.Role == domain.RoleModel && !m.IsError {
		resp.HeavyTraffic = s.classify(m.Text)
	}
	return resp
}

func (s *Server) toMessagesResponse(msgs []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, s.toMessageResponse(m))
	}
	return out
}

func toPreferencesDTO(p domain.Preferences) preferencesDTO {
	return preferencesDTO{
		RouteGoal:             string(p.RouteGoal),
		AccessibilityRequired: p.AccessibilityRequired,
		UseLocation:           p.UseLocation,
	}
}

func fromPreferencesDTO(p preferencesDTO) domain.Preferences {
	return domain.Preferences{
		RouteGoal:             parseRouteGoal(p.RouteGoal),
		AccessibilityRequired: p.AccessibilityRequired,
		UseLocation:           p.UseLocation,
	}
}

func parseRouteGoal(s string) domain.RouteGoal {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "FASTEST":
		return domain.GoalFastest
	case "LEAST_CROWDED", "LEAST-CROWDED":
		return domain.GoalLeastCrowded
	case "LOW_WALKING", "LOW-WALKING":
		return domain.GoalLowWalking
	case "FEWEST_TRANSFERS", "FEWEST-TRANSFERS":
		return domain.GoalFewestTransfers
	default:
		// left invalid on purpose so the store rejects it
		return domain.RouteGoal(s)
	}
}

func parseLocationErrorCode(s string) domain.LocationErrorCode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timeout", "3":
		return domain.LocationTimeout
	case "permission_denied", "1":
		return domain.LocationPermissionDenied
	default:
		return domain.LocationPositionUnavailable
	}
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

// writeError maps domain errors to status codes. Anything unexpected is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrSessionClosed):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, domain.ErrEmptyMessage):
		badRequest(w, "text is required")
	case errors.Is(err, domain.ErrInvalidPreferences):
		badRequest(w, err.Error())
	case errors.Is(err, domain.ErrTurnInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}
