package pulsefeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"

	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/infrastructure/provider"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultCallTimeout  = 8 * time.Second
)

// Client adapts the PulseFeed API. PulseFeed does not assign identifiers to
// occurrences, so event ids are content-hash derived: the same occurrence
// re-delivered (or observed through a second subscription) hashes to the
// same id.
type Client struct {
	providerID   string
	baseURL      string
	apiKey       string
	client       *fasthttp.Client
	callTimeout  time.Duration
	pollInterval time.Duration
	logger       *logging.Logger
}

func NewClient(providerID, baseURL, apiKey string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		providerID:   providerID,
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		client:       &fasthttp.Client{ReadTimeout: defaultCallTimeout, WriteTimeout: defaultCallTimeout},
		callTimeout:  defaultCallTimeout,
		pollInterval: defaultPollInterval,
		logger:       logger,
	}
}

func (c *Client) ProviderID() string { return c.providerID }

type feedEnvelope struct {
	Seq    int64      `json:"seq"`
	Status string     `json:"status"`
	Items  []feedItem `json:"items"`
}

type feedItem struct {
	Kind   string            `json:"kind"`
	Player string            `json:"player"`
	Team   string            `json:"team"`
	Clock  int               `json:"clock"`
	TS     int64             `json:"ts"`
	Extra  map[string]string `json:"extra"`
}

type matchListEnvelope struct {
	Matches []struct {
		Ref     string `json:"ref"`
		Sport   string `json:"sport"`
		Home    string `json:"home"`
		Away    string `json:"away"`
		Phase   string `json:"phase"`
		StartTS int64  `json:"start_ts"`
	} `json:"matches"`
}

func (c *Client) FetchSchedule(ctx context.Context, sportID string) ([]provider.ScheduledMatch, error) {
	raw, err := c.get(ctx, fmt.Sprintf("/feed/%s/matches", strings.ToLower(sportID)))
	if err != nil {
		return nil, fmt.Errorf("fetch pulsefeed schedule sport=%s: %w", sportID, err)
	}

	var envelope matchListEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrapf(provider.ErrMalformedPayload, "decode pulsefeed schedule: %v", err)
	}

	out := make([]provider.ScheduledMatch, 0, len(envelope.Matches))
	for _, item := range envelope.Matches {
		out = append(out, provider.ScheduledMatch{
			ExternalMatchID: item.Ref,
			MatchID:         item.Ref,
			SportID:         strings.ToUpper(item.Sport),
			HomeTeamID:      item.Home,
			AwayTeamID:      item.Away,
			TournamentPhase: item.Phase,
			KickoffAt:       time.Unix(item.StartTS, 0).UTC(),
		})
	}
	return out, nil
}

func (c *Client) StreamEvents(ctx context.Context, sportID, externalMatchID string) (<-chan event.MatchEvent, <-chan error, error) {
	if strings.TrimSpace(externalMatchID) == "" {
		return nil, nil, fmt.Errorf("external match id is required")
	}

	events := make(chan event.MatchEvent)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		seq := int64(0)
		path := fmt.Sprintf("/feed/%s/matches/%s/live", strings.ToLower(sportID), externalMatchID)

		for {
			raw, err := c.get(ctx, fmt.Sprintf("%s?after=%d", path, seq))
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
				}
				return
			}

			var envelope feedEnvelope
			if err := sonic.Unmarshal(raw, &envelope); err != nil {
				select {
				case errs <- errors.Wrapf(provider.ErrMalformedPayload, "decode pulsefeed frame: %v", err):
				case <-ctx.Done():
				}
				return
			}

			terminal := false
			for _, item := range envelope.Items {
				ev, mapErr := c.mapEvent(sportID, externalMatchID, item)
				if mapErr != nil {
					c.logger.WarnContext(ctx, "pulsefeed event dropped",
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
			if envelope.Seq > seq {
				seq = envelope.Seq
			}
			if terminal || envelope.Status == "final" {
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

func (c *Client) CheckHealth(ctx context.Context) (provider.Health, error) {
	raw, err := c.get(ctx, "/feed/health")
	if err != nil {
		return provider.Health{}, fmt.Errorf("pulsefeed health check: %w", err)
	}

	var body struct {
		Up        bool `json:"up"`
		Remaining int  `json:"remaining"`
		Limit     int  `json:"limit"`
	}
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return provider.Health{}, errors.Wrapf(provider.ErrMalformedPayload, "decode pulsefeed health: %v", err)
	}

	return provider.Health{
		Healthy:        body.Up,
		QuotaRemaining: body.Remaining,
		QuotaLimit:     body.Limit,
	}, nil
}

var kindMap = map[string]event.Type{
	"start":      event.TypeMatchStarted,
	"end":        event.TypeMatchEnded,
	"goal":       event.TypeGoalScored,
	"assist":     event.TypeAssist,
	"card":       event.TypeCardIssued,
	"pen_save":   event.TypePenaltySaved,
	"score":      event.TypePointsScored,
	"rebound":    event.TypeRebound,
	"block":      event.TypeBlock,
	"steal":      event.TypeSteal,
	"correction": event.TypeCorrection,
}

func (c *Client) mapEvent(sportID, externalMatchID string, item feedItem) (event.MatchEvent, error) {
	typ, ok := kindMap[item.Kind]
	if !ok {
		return event.MatchEvent{}, errors.Wrapf(provider.ErrMalformedPayload, "unknown pulsefeed kind %q", item.Kind)
	}
	if item.TS <= 0 {
		return event.MatchEvent{}, errors.Wrap(provider.ErrMalformedPayload, "pulsefeed item has no timestamp")
	}

	ev := event.MatchEvent{
		EventID:       event.DeriveEventID(externalMatchID, typ, item.Player, item.Clock, fmt.Sprintf("%d", item.TS)),
		MatchID:       externalMatchID,
		SportID:       strings.ToUpper(sportID),
		ProviderID:    c.providerID,
		Timestamp:     time.Unix(item.TS, 0).UTC(),
		Type:          typ,
		PlayerID:      item.Player,
		TeamID:        item.Team,
		Minute:        item.Clock,
		Metadata:      item.Extra,
		SchemaVersion: event.SchemaVersion,
	}
	if err := ev.Validate(); err != nil {
		return event.MatchEvent{}, errors.Wrapf(provider.ErrMalformedPayload, "invalid pulsefeed event: %v", err)
	}
	return ev, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	deadline := time.Now().Add(c.callTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(provider.ErrTransient, "send pulsefeed request: %v", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		if classified := provider.Classify(status); classified != nil {
			return nil, errors.Wrapf(classified, "pulsefeed status=%d", status)
		}
		return nil, fmt.Errorf("pulsefeed status=%d", status)
	}

	raw := make([]byte, len(resp.Body()))
	copy(raw, resp.Body())
	return raw, nil
}
