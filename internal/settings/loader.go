package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/pipedesk/internal/scoring"
	"github.com/MikeSquared-Agency/pipedesk/internal/sla"
	"github.com/MikeSquared-Agency/pipedesk/internal/store"
	"github.com/MikeSquared-Agency/pipedesk/internal/transition"
)

// Loader reads rule configuration through an optional cache. A nil cache
// reads the store every time.
type Loader struct {
	store  store.Store
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewLoader(s store.Store, cache Cache, ttl time.Duration, logger *slog.Logger) *Loader {
	return &Loader{store: s, cache: cache, ttl: ttl, logger: logger}
}

// PriorityConfig returns the active lead priority config. Missing or partly
// malformed settings are filled from defaults. On a store error the defaults
// are returned together with the error, so callers may fail open.
func (l *Loader) PriorityConfig(ctx context.Context) (scoring.PriorityConfig, error) {
	raw, err := l.rawPriorityConfig(ctx)
	if err != nil {
		return scoring.DefaultPriorityConfig(), err
	}
	if raw == nil {
		return scoring.DefaultPriorityConfig(), nil
	}

	cfg, defaulted := scoring.ParseConfigJSON(raw)
	if len(defaulted) > 0 {
		l.logger.Warn("priority config fields defaulted", "fields", defaulted)
	}
	return cfg, nil
}

func (l *Loader) rawPriorityConfig(ctx context.Context) ([]byte, error) {
	key := store.SettingPriorityConfig
	if l.cache != nil {
		val, ok, err := l.cache.Get(ctx, key)
		if err != nil {
			l.logger.Warn("settings cache read failed", "key", key, "error", err)
		} else if ok {
			return val, nil
		}
	}

	setting, err := l.store.GetSetting(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load priority config: %w", err)
	}
	if setting == nil {
		return nil, nil
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, setting.Value, l.ttl); err != nil {
			l.logger.Warn("settings cache write failed", "key", key, "error", err)
		}
	}
	return setting.Value, nil
}

// SavePriorityConfig validates and stores cfg. An invalid config is not
// written; the validation result is returned with a nil error.
func (l *Loader) SavePriorityConfig(ctx context.Context, cfg scoring.PriorityConfig, updatedBy string) (scoring.ValidationResult, error) {
	res := scoring.ValidateConfig(cfg)
	if !res.Valid {
		return res, nil
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return res, fmt.Errorf("marshal priority config: %w", err)
	}
	if err := l.store.PutSetting(ctx, store.SettingPriorityConfig, data, updatedBy); err != nil {
		return res, err
	}
	l.Invalidate(ctx)
	return res, nil
}

// Invalidate drops cached settings.
func (l *Loader) Invalidate(ctx context.Context) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, store.SettingPriorityConfig); err != nil {
		l.logger.Warn("settings cache invalidate failed", "error", err)
	}
}

// Policies returns the current SLA policies indexed by stage.
func (l *Loader) Policies(ctx context.Context) (sla.PolicySet, error) {
	policies, err := l.store.ListSLAPolicies(ctx)
	if err != nil {
		return sla.PolicySet{}, fmt.Errorf("load sla policies: %w", err)
	}
	return sla.NewPolicySet(policies), nil
}

// Rules returns the current transition rules compiled for lookup.
func (l *Loader) Rules(ctx context.Context) (transition.RuleSet, error) {
	rules, err := l.store.ListTransitionRules(ctx)
	if err != nil {
		return transition.RuleSet{}, fmt.Errorf("load transition rules: %w", err)
	}
	return transition.NewRuleSet(rules), nil
}
