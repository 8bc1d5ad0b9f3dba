// Package triage performs the one-shot severity classification that seeds a
// consultation's doctor roster.
package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/ocegs/panel/internal/aijson"
	"github.com/ocegs/panel/internal/prompt"
	"github.com/ocegs/panel/internal/provider"
	"github.com/ocegs/panel/internal/settings"
	"github.com/ocegs/panel/pkg/logging"
)

// Result is the classification outcome. It is never persisted as its own
// entity; a rendered note becomes the consultation's first system message.
type Result struct {
	Severity        int      `json:"severity"`
	Department      string   `json:"department"`
	IsEmergency     bool     `json:"is_emergency"`
	EmergencyAdvice string   `json:"emergency_advice,omitempty"`
	Risks           []string `json:"risks"`
	Summary         string   `json:"summary"`
	AssignedDoctors []string `json:"assigned_doctors"`
}

// Fallback is the fixed result used whenever the model's classification
// cannot be parsed. Callers may rely on it being identical every time.
func Fallback() Result {
	return Result{
		Severity:        3,
		Department:      "General Medicine",
		IsEmergency:     false,
		Risks:           []string{"Automatic risk assessment was unavailable; please consult a medical professional promptly if symptoms worsen."},
		Summary:         "Automatic triage was unavailable. A general assessment will be performed by the panel.",
		AssignedDoctors: []string{prompt.DefaultSpecialist().ID},
	}
}

type adapterFactory interface {
	Adapter(cfg provider.Config) provider.Adapter
}

type configResolver interface {
	Resolve(ctx context.Context, role string, o provider.Override) (provider.Config, error)
}

type Engine struct {
	resolver configResolver
	factory  adapterFactory
	logger   *logging.Logger
}

func NewEngine(resolver configResolver, factory adapterFactory, logger *logging.Logger) *Engine {
	if resolver == nil || factory == nil {
		panic("triage: resolver and factory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{resolver: resolver, factory: factory, logger: logger}
}

// Perform classifies a complaint. The returned specialists are resolved
// against the catalog: unknown ids are dropped, an empty set gets the
// default specialist. Perform never fails on model misbehavior, only on
// configuration lookup errors.
func (e *Engine) Perform(ctx context.Context, complaint string, kase *prompt.Case) (Result, []prompt.Specialist, error) {
	cfg, err := e.resolver.Resolve(ctx, settings.RoleTriage, provider.Override{})
	if err != nil {
		return Result{}, nil, fmt.Errorf("triage: %w", err)
	}
	adapter := e.factory.Adapter(cfg)

	pair := prompt.Triage(complaint, kase)
	text := adapter.Complete(ctx, provider.Request{
		Messages: []provider.ChatMessage{
			{Role: provider.RoleSystem, Content: pair.System},
			{Role: provider.RoleUser, Content: pair.User},
		},
		Temperature: 0.2,
		MaxTokens:   1000,
	})

	var r Result
	if !aijson.Unmarshal(text, &r) || !valid(r) {
		e.logger.Warn("triage output unparseable, using fallback", "raw_len", len(text))
		r = Fallback()
	}
	return r, e.specialists(r.AssignedDoctors), nil
}

func valid(r Result) bool {
	return r.Severity >= 1 && r.Severity <= 5 && strings.TrimSpace(r.Department) != ""
}

func (e *Engine) specialists(ids []string) []prompt.Specialist {
	var out []prompt.Specialist
	for _, id := range ids {
		s, ok := prompt.ByID(strings.TrimSpace(id))
		if !ok {
			e.logger.Warn("dropping unknown specialist from triage assignment", "specialist_id", id)
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		out = append(out, prompt.DefaultSpecialist())
	}
	return out
}

// RenderNote formats a triage result as the consultation's opening system
// message.
func RenderNote(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Triage assessment: severity %d/5, department %s.", r.Severity, r.Department)
	if r.IsEmergency {
		b.WriteString(" This presentation may be an emergency.")
		if strings.TrimSpace(r.EmergencyAdvice) != "" {
			b.WriteString(" " + r.EmergencyAdvice)
		}
	}
	if strings.TrimSpace(r.Summary) != "" {
		b.WriteString("\n" + r.Summary)
	}
	if len(r.Risks) > 0 {
		b.WriteString("\nRisks:")
		for _, risk := range r.Risks {
			b.WriteString("\n- " + risk)
		}
	}
	return b.String()
}
