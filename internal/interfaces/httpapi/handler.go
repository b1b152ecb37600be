package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/rules"
	"github.com/matchpulse/scoring-core/internal/infrastructure/stream"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
	"github.com/matchpulse/scoring-core/internal/usecase"
)

type Handler struct {
	gateway     *usecase.GatewayService
	projections *usecase.ProjectionService
	bonuses     *usecase.BonusService
	registry    *rules.Registry
	hub         *stream.Hub
	logger      *logging.Logger
	validator   *validator.Validate
}

func NewHandler(
	gateway *usecase.GatewayService,
	projections *usecase.ProjectionService,
	bonuses *usecase.BonusService,
	registry *rules.Registry,
	hub *stream.Hub,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		gateway:     gateway,
		projections: projections,
		bonuses:     bonuses,
		registry:    registry,
		hub:         hub,
		logger:      logger,
		validator:   validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitEventRequest struct {
	EventID    string            `json:"eventId"`
	SportID    string            `json:"sportId" validate:"required"`
	ProviderID string            `json:"providerId"`
	Type       string            `json:"type" validate:"required"`
	PlayerID   string            `json:"playerId"`
	TeamID     string            `json:"teamId"`
	Minute     int               `json:"minute" validate:"gte=0"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata"`
}

type submitEventResponse struct {
	EventID string `json:"eventId"`
	MatchID string `json:"matchId"`
	Version int64  `json:"version"`
}

// SubmitMatchEvent is the push ingestion route: one normalized event for
// the match in the path.
func (h *Handler) SubmitMatchEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubmitMatchEvent")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	if matchID == "" {
		writeError(ctx, w, fmt.Errorf("%w: match id is required", usecase.ErrInvalidInput))
		return
	}

	var req submitEventRequest
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: decode request body: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}

	ev := event.MatchEvent{
		EventID:       strings.TrimSpace(req.EventID),
		MatchID:       matchID,
		SportID:       strings.ToUpper(strings.TrimSpace(req.SportID)),
		ProviderID:    strings.TrimSpace(req.ProviderID),
		Timestamp:     req.Timestamp,
		Type:          event.Type(strings.ToUpper(strings.TrimSpace(req.Type))),
		PlayerID:      strings.TrimSpace(req.PlayerID),
		TeamID:        strings.TrimSpace(req.TeamID),
		Minute:        req.Minute,
		Metadata:      req.Metadata,
		SchemaVersion: event.SchemaVersion,
	}
	if ev.EventID == "" {
		ev.EventID = event.DeriveEventID(ev.MatchID, ev.Type, ev.PlayerID, ev.Minute, req.Metadata["sequence"])
	}

	version, err := h.gateway.SubmitLiveEvent(ctx, ev)
	if err != nil {
		h.logger.WarnContext(ctx, "submit event failed", "match_id", matchID, "event_id", ev.EventID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusAccepted, submitEventResponse{
		EventID: ev.EventID,
		MatchID: matchID,
		Version: version,
	})
}

// GetMatchProjection returns the named read model's current snapshot.
func (h *Handler) GetMatchProjection(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetMatchProjection")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	name := strings.TrimSpace(r.PathValue("name"))

	state, err := h.projections.GetState(ctx, name, matchID)
	if err != nil {
		h.logger.WarnContext(ctx, "get projection failed", "match_id", matchID, "projection", name, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, state)
}

// RebuildProjection drops the snapshot and refolds it from the stream.
func (h *Handler) RebuildProjection(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RebuildProjection")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	name := strings.TrimSpace(r.PathValue("name"))

	state, err := h.projections.Rebuild(ctx, name, matchID)
	if err != nil {
		h.logger.ErrorContext(ctx, "rebuild projection failed", "match_id", matchID, "projection", name, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, state)
}

// EvaluateMatchBonuses re-runs post-match evaluation for a finished match.
func (h *Handler) EvaluateMatchBonuses(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.EvaluateMatchBonuses")
	defer span.End()

	matchID := strings.TrimSpace(r.PathValue("matchID"))
	if err := h.bonuses.EvaluateMatch(ctx, matchID); err != nil {
		h.logger.WarnContext(ctx, "evaluate bonuses failed", "match_id", matchID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"matchId": matchID, "status": "evaluated"})
}

// ListSports returns the sports the rule registry currently serves.
func (h *Handler) ListSports(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListSports")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"sports": h.registry.Sports()})
}

// ProvidersHealth reports every provider's probe result and circuit state.
func (h *Handler) ProvidersHealth(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ProvidersHealth")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.gateway.ProviderHealth(ctx))
}

// GetSchedule returns upcoming matches for a sport from the providers.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetSchedule")
	defer span.End()

	sportID := strings.ToUpper(strings.TrimSpace(r.PathValue("sportID")))
	matches, err := h.gateway.FetchSchedule(ctx, sportID)
	if err != nil {
		h.logger.WarnContext(ctx, "fetch schedule failed", "sport_id", sportID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, matches)
}
