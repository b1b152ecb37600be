package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/matchpulse/scoring-core/internal/domain/event"
)

var (
	// ErrSportNotSupported is normal control flow for callers: an
	// unsupported feed must not halt ingestion of other sports.
	ErrSportNotSupported = errors.New("sport not supported")

	ErrInvalidConfig = errors.New("invalid sport config")
)

// Registry maps sport identifiers to immutable rule-set configurations.
// Registration happens at startup; lookups are O(1), side-effect-free and
// safe for unsynchronized concurrent reads once populated.
type Registry struct {
	mu       sync.RWMutex
	configs  map[string]Config
	validate *validator.Validate
}

func NewRegistry() *Registry {
	return &Registry{
		configs:  make(map[string]Config),
		validate: validator.New(),
	}
}

// Register validates and stores a sport configuration. Every roster limit
// must be non-negative and every rule's event type must belong to the
// sport's tracked statistics set.
func (r *Registry) Register(sportID string, cfg Config) error {
	sportID = strings.ToUpper(strings.TrimSpace(sportID))
	if sportID == "" {
		return fmt.Errorf("%w: sport id is required", ErrInvalidConfig)
	}
	cfg.SportID = sportID

	if err := r.validate.Struct(cfg); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "sport=%s: %v", sportID, err)
	}
	if len(cfg.TrackedTypes) == 0 {
		return fmt.Errorf("%w: sport=%s has no tracked event types", ErrInvalidConfig, sportID)
	}

	for position, limit := range cfg.RosterLimits {
		if limit < 0 {
			return fmt.Errorf("%w: sport=%s roster limit for %s must be >= 0, got %d", ErrInvalidConfig, sportID, position, limit)
		}
	}

	tracked := cfg.tracked()
	seenRuleIDs := make(map[string]struct{}, len(cfg.LiveRules)+len(cfg.PostMatch))

	for _, rule := range cfg.LiveRules {
		if err := r.validate.Struct(rule); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "sport=%s live rule %q: %v", sportID, rule.RuleID, err)
		}
		if _, dup := seenRuleIDs[rule.RuleID]; dup {
			return fmt.Errorf("%w: sport=%s duplicate rule id %q", ErrInvalidConfig, sportID, rule.RuleID)
		}
		seenRuleIDs[rule.RuleID] = struct{}{}
		if _, ok := tracked[rule.EventType]; !ok {
			return fmt.Errorf("%w: sport=%s live rule %q targets untracked event type %q", ErrInvalidConfig, sportID, rule.RuleID, rule.EventType)
		}
	}

	for _, rule := range cfg.PostMatch {
		if err := r.validate.Struct(rule); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "sport=%s post-match rule %q: %v", sportID, rule.RuleID, err)
		}
		if _, dup := seenRuleIDs[rule.RuleID]; dup {
			return fmt.Errorf("%w: sport=%s duplicate rule id %q", ErrInvalidConfig, sportID, rule.RuleID)
		}
		seenRuleIDs[rule.RuleID] = struct{}{}
		if rule.Calculate == nil {
			return fmt.Errorf("%w: sport=%s post-match rule %q has no bonus calculator", ErrInvalidConfig, sportID, rule.RuleID)
		}
	}

	r.mu.Lock()
	r.configs[sportID] = cloneConfig(cfg)
	r.mu.Unlock()
	return nil
}

// Get returns the configuration for a sport. ErrSportNotSupported must be
// handled by callers as a normal control-flow case, not a crash.
func (r *Registry) Get(sportID string) (Config, error) {
	sportID = strings.ToUpper(strings.TrimSpace(sportID))

	r.mu.RLock()
	cfg, ok := r.configs[sportID]
	r.mu.RUnlock()
	if !ok {
		return Config{}, errors.Wrapf(ErrSportNotSupported, "sport=%s", sportID)
	}
	return cfg, nil
}

// Sports lists the registered sport identifiers.
func (r *Registry) Sports() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.configs))
	for sportID := range r.configs {
		out = append(out, sportID)
	}
	return out
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.TrackedTypes = append([]event.Type(nil), cfg.TrackedTypes...)
	out.LiveRules = append([]LiveRule(nil), cfg.LiveRules...)
	out.PostMatch = append([]PostMatchRule(nil), cfg.PostMatch...)
	if cfg.RosterLimits != nil {
		out.RosterLimits = make(map[string]int, len(cfg.RosterLimits))
		for k, v := range cfg.RosterLimits {
			out.RosterLimits[k] = v
		}
	}
	return out
}
