package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ocegs/panel/internal/aijson"
	"github.com/ocegs/panel/internal/prompt"
	"github.com/ocegs/panel/internal/provider"
	"github.com/ocegs/panel/internal/settings"
	"github.com/ocegs/panel/pkg/logging"
)

const guideCacheTTL = 24 * time.Hour

// GuideStep is one ordered first-aid action.
type GuideStep struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// Guide is the structured emergency instruction sheet for a level-5 triage.
type Guide struct {
	Title      string      `json:"title"`
	Steps      []GuideStep `json:"steps"`
	Warnings   []string    `json:"warnings"`
	Prohibited []string    `json:"prohibited"`
}

// FallbackGuide is returned when the model cannot produce a parseable guide.
func FallbackGuide() Guide {
	return Guide{
		Title: "Emergency Guidance",
		Steps: []GuideStep{
			{Index: 1, Action: "Call your local emergency number immediately", Detail: "Describe the symptoms and follow the dispatcher's instructions."},
			{Index: 2, Action: "Keep the patient still and calm", Detail: "Have them rest in a comfortable position and avoid exertion."},
			{Index: 3, Action: "Stay with the patient", Detail: "Monitor breathing and responsiveness until help arrives."},
		},
		Warnings:   []string{"Symptoms may worsen rapidly; do not wait to see if they improve."},
		Prohibited: []string{"Do not give food, drink, or unprescribed medication.", "Do not drive yourself to the hospital if symptoms are severe."},
	}
}

// GuideEngine generates and caches per-consultation emergency guides.
type GuideEngine struct {
	resolver configResolver
	factory  adapterFactory
	cache    *redis.Client
	logger   *logging.Logger
}

func NewGuideEngine(resolver configResolver, factory adapterFactory, cache *redis.Client, logger *logging.Logger) *GuideEngine {
	if resolver == nil || factory == nil {
		panic("triage: resolver and factory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GuideEngine{resolver: resolver, factory: factory, cache: cache, logger: logger}
}

func guideCacheKey(id uuid.UUID) string {
	return "emergency:guide:" + id.String()
}

// Guide returns the emergency guide for a consultation, generating it on
// first request and serving the cached copy for a day afterwards. Cache
// failures are logged and bypassed, never surfaced.
func (g *GuideEngine) Guide(ctx context.Context, consultationID uuid.UUID, complaint, triageSummary string) (Guide, error) {
	key := guideCacheKey(consultationID)
	if g.cache != nil {
		raw, err := g.cache.Get(ctx, key).Bytes()
		if err == nil {
			var cached Guide
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			g.logger.Warn("emergency guide cache read failed", "error", err)
		}
	}

	cfg, err := g.resolver.Resolve(ctx, settings.RoleTriage, provider.Override{})
	if err != nil {
		return Guide{}, fmt.Errorf("triage: emergency guide: %w", err)
	}
	adapter := g.factory.Adapter(cfg)

	pair := prompt.Emergency(complaint, triageSummary)
	text := adapter.Complete(ctx, provider.Request{
		Messages: []provider.ChatMessage{
			{Role: provider.RoleSystem, Content: pair.System},
			{Role: provider.RoleUser, Content: pair.User},
		},
		Temperature: 0.2,
		MaxTokens:   1500,
	})

	var guide Guide
	if !aijson.Unmarshal(text, &guide) || guide.Title == "" || len(guide.Steps) == 0 {
		g.logger.Warn("emergency guide unparseable, using fallback", "consultation_id", consultationID)
		guide = FallbackGuide()
	}

	if g.cache != nil {
		if raw, err := json.Marshal(guide); err == nil {
			if err := g.cache.Set(ctx, key, raw, guideCacheTTL).Err(); err != nil {
				g.logger.Warn("emergency guide cache write failed", "error", err)
			}
		}
	}
	return guide, nil
}
