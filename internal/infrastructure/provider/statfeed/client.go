package statfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/infrastructure/provider"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
)

const (
	defaultPollInterval = 2 * time.Second
	maxResponseBytes    = 6 << 20
)

// Client adapts the StatFeed cursor-based JSON API to the canonical event
// model. StatFeed assigns stable ids to every occurrence, so event identity
// carries straight through.
type Client struct {
	providerID   string
	baseURL      string
	token        string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       *logging.Logger
}

type Option func(*Client)

func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

func NewClient(providerID, baseURL, token string, httpClient *http.Client, logger *logging.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		providerID:   providerID,
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		httpClient:   httpClient,
		pollInterval: defaultPollInterval,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ProviderID() string { return c.providerID }

type scheduleEnvelope struct {
	Data []scheduleItem `json:"data"`
}

type scheduleItem struct {
	ID           string `json:"id"`
	Sport        string `json:"sport"`
	HomeTeam     string `json:"home_team"`
	AwayTeam     string `json:"away_team"`
	Phase        string `json:"phase"`
	KickoffAt    string `json:"kickoff_at"`
	CanonicalRef string `json:"canonical_ref"`
}

func (c *Client) FetchSchedule(ctx context.Context, sportID string) ([]provider.ScheduledMatch, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/v1/sports/%s/schedule", strings.ToLower(sportID)), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch statfeed schedule sport=%s: %w", sportID, err)
	}

	var envelope scheduleEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrapf(provider.ErrMalformedPayload, "decode statfeed schedule: %v", err)
	}

	out := make([]provider.ScheduledMatch, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		kickoff, _ := time.Parse(time.RFC3339, item.KickoffAt)
		matchID := item.CanonicalRef
		if matchID == "" {
			matchID = item.ID
		}
		out = append(out, provider.ScheduledMatch{
			ExternalMatchID: item.ID,
			MatchID:         matchID,
			SportID:         strings.ToUpper(item.Sport),
			HomeTeamID:      item.HomeTeam,
			AwayTeamID:      item.AwayTeam,
			TournamentPhase: item.Phase,
			KickoffAt:       kickoff,
		})
	}
	return out, nil
}

type eventsEnvelope struct {
	Data   []eventItem `json:"data"`
	Cursor int64       `json:"cursor"`
	Match  struct {
		Status string `json:"status"`
	} `json:"match"`
}

type eventItem struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	PlayerID string            `json:"player_id"`
	TeamID   string            `json:"team_id"`
	Minute   int               `json:"minute"`
	At       string            `json:"at"`
	Attrs    map[string]string `json:"attrs"`
}

// StreamEvents long-polls the match event cursor endpoint and emits
// canonical events in upstream order. A single malformed item is logged and
// skipped; the stream keeps going.
func (c *Client) StreamEvents(ctx context.Context, sportID, externalMatchID string) (<-chan event.MatchEvent, <-chan error, error) {
	if strings.TrimSpace(externalMatchID) == "" {
		return nil, nil, fmt.Errorf("external match id is required")
	}

	events := make(chan event.MatchEvent)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		cursor := int64(0)
		path := fmt.Sprintf("/v1/sports/%s/matches/%s/events", strings.ToLower(sportID), externalMatchID)

		for {
			raw, err := c.get(ctx, path, map[string]string{"cursor": fmt.Sprintf("%d", cursor)})
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
				}
				return
			}

			var envelope eventsEnvelope
			if err := sonic.Unmarshal(raw, &envelope); err != nil {
				select {
				case errs <- errors.Wrapf(provider.ErrMalformedPayload, "decode statfeed events: %v", err):
				case <-ctx.Done():
				}
				return
			}

			terminal := false
			for _, item := range envelope.Data {
				ev, mapErr := c.mapEvent(sportID, externalMatchID, item)
				if mapErr != nil {
					c.logger.WarnContext(ctx, "statfeed event dropped",
						"provider", c.providerID, "match", externalMatchID, "error", mapErr)
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
				if ev.IsTerminal() {
					terminal = true
				}
			}
			if envelope.Cursor > cursor {
				cursor = envelope.Cursor
			}
			if terminal || envelope.Match.Status == "finished" {
				return
			}

			timer := time.NewTimer(c.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()

	return events, errs, nil
}

type healthEnvelope struct {
	Status         string `json:"status"`
	QuotaRemaining int    `json:"quota_remaining"`
	QuotaLimit     int    `json:"quota_limit"`
}

func (c *Client) CheckHealth(ctx context.Context) (provider.Health, error) {
	raw, err := c.get(ctx, "/v1/health", nil)
	if err != nil {
		return provider.Health{}, fmt.Errorf("statfeed health check: %w", err)
	}

	var envelope healthEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return provider.Health{}, errors.Wrapf(provider.ErrMalformedPayload, "decode statfeed health: %v", err)
	}

	return provider.Health{
		Healthy:        envelope.Status == "ok",
		QuotaRemaining: envelope.QuotaRemaining,
		QuotaLimit:     envelope.QuotaLimit,
	}, nil
}

// ParsePushPayload converts a pushed StatFeed webhook body into canonical
// events. Used by the push-based ingestion edge.
func (c *Client) ParsePushPayload(sportID, matchID string, raw []byte) ([]event.MatchEvent, error) {
	var envelope eventsEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrapf(provider.ErrMalformedPayload, "decode statfeed push payload: %v", err)
	}
	if len(envelope.Data) == 0 {
		return nil, errors.Wrap(provider.ErrMalformedPayload, "push payload has no events")
	}

	out := make([]event.MatchEvent, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		ev, err := c.mapEvent(sportID, matchID, item)
		if err != nil {
			return nil, err
		}
		ev.MatchID = matchID
		out = append(out, ev)
	}
	return out, nil
}

var nativeTypeMap = map[string]event.Type{
	"match_start":   event.TypeMatchStarted,
	"match_end":     event.TypeMatchEnded,
	"goal":          event.TypeGoalScored,
	"assist":        event.TypeAssist,
	"card":          event.TypeCardIssued,
	"penalty_save":  event.TypePenaltySaved,
	"clean_sheet":   event.TypeCleanSheet,
	"points":        event.TypePointsScored,
	"rebound":       event.TypeRebound,
	"block":         event.TypeBlock,
	"steal":         event.TypeSteal,
	"correction":    event.TypeCorrection,
}

func (c *Client) mapEvent(sportID, externalMatchID string, item eventItem) (event.MatchEvent, error) {
	typ, ok := nativeTypeMap[item.Type]
	if !ok {
		return event.MatchEvent{}, errors.Wrapf(provider.ErrMalformedPayload, "unknown statfeed event type %q", item.Type)
	}

	timestamp, err := time.Parse(time.RFC3339, item.At)
	if err != nil {
		return event.MatchEvent{}, errors.Wrapf(provider.ErrMalformedPayload, "invalid statfeed event timestamp %q", item.At)
	}

	eventID := item.ID
	if eventID == "" {
		eventID = event.DeriveEventID(externalMatchID, typ, item.PlayerID, item.Minute, item.At)
	}

	ev := event.MatchEvent{
		EventID:       eventID,
		MatchID:       externalMatchID,
		SportID:       strings.ToUpper(sportID),
		ProviderID:    c.providerID,
		Timestamp:     timestamp.UTC(),
		Type:          typ,
		PlayerID:      item.PlayerID,
		TeamID:        item.TeamID,
		Minute:        item.Minute,
		Metadata:      item.Attrs,
		SchemaVersion: event.SchemaVersion,
	}
	if err := ev.Validate(); err != nil {
		return event.MatchEvent{}, errors.Wrapf(provider.ErrMalformedPayload, "invalid statfeed event: %v", err)
	}
	return ev, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("api_token", c.token)

	fullURL := c.baseURL + path + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build statfeed request: %w", err)
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(provider.ErrTransient, "send statfeed request: %v", sanitizeToken(err.Error(), c.token))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrapf(provider.ErrTransient, "read statfeed response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if classified := provider.Classify(resp.StatusCode); classified != nil {
			return nil, errors.Wrapf(classified, "statfeed status=%d", resp.StatusCode)
		}
		return nil, fmt.Errorf("statfeed status=%d body=%s", resp.StatusCode, abbreviate(raw))
	}

	return raw, nil
}

func sanitizeToken(value, token string) string {
	if token == "" {
		return value
	}
	return strings.ReplaceAll(value, token, "REDACTED")
}

func abbreviate(raw []byte) string {
	const limit = 256
	if len(raw) <= limit {
		return string(raw)
	}
	return string(raw[:limit]) + "..."
}
