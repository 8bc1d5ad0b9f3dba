package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/ocegs/panel/internal/provider"
)

// snapshotter is the slice of Store the resolver needs.
type snapshotter interface {
	Snapshot(ctx context.Context) (map[string]string, error)
}

// Resolver turns stored settings plus a per-call override into a full
// provider config. Precedence, most specific first: the override, then
// role-prefixed keys (e.g. triage_provider), then global defaults
// (default_provider, default_model). Credentials come from
// <provider>_api_key / <provider>_base_url keyed by the resolved provider,
// unless the override already carries them.
type Resolver struct {
	store snapshotter
}

func NewResolver(store snapshotter) *Resolver {
	if store == nil {
		panic("settings: store required")
	}
	return &Resolver{store: store}
}

// RoleTriage selects the triage_* key tier.
const RoleTriage = "triage"

func (r *Resolver) Resolve(ctx context.Context, role string, o provider.Override) (provider.Config, error) {
	vals, err := r.store.Snapshot(ctx)
	if err != nil {
		return provider.Config{}, fmt.Errorf("settings: resolve ai config: %w", err)
	}

	cfg := provider.Config{
		Provider: vals["default_provider"],
		Model:    vals["default_model"],
	}
	if role != "" {
		cfg = provider.Merge(cfg, provider.Override{
			Provider: vals[role+"_provider"],
			Model:    vals[role+"_model"],
			APIKey:   vals[role+"_api_key"],
			BaseURL:  vals[role+"_base_url"],
		})
	}
	cfg = provider.Merge(cfg, o)

	if strings.TrimSpace(cfg.Provider) == "" {
		cfg.Provider = "openai"
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if strings.TrimSpace(cfg.APIKey) == "" {
		cfg.APIKey = vals[name+"_api_key"]
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = vals[name+"_base_url"]
	}
	return cfg, nil
}
