package triage

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/ocegs/panel/internal/prompt"
	"github.com/ocegs/panel/internal/provider"
	"github.com/ocegs/panel/pkg/logging"
)

type staticResolver struct{ cfg provider.Config }

func (r staticResolver) Resolve(context.Context, string, provider.Override) (provider.Config, error) {
	return r.cfg, nil
}

type scriptedAdapter struct{ reply string }

func (a scriptedAdapter) Complete(context.Context, provider.Request) string { return a.reply }

type scriptedFactory struct{ reply string }

func (f scriptedFactory) Adapter(provider.Config) provider.Adapter {
	return scriptedAdapter{reply: f.reply}
}

func newTestEngine(reply string) *Engine {
	return NewEngine(staticResolver{cfg: provider.Config{Provider: "openai"}}, scriptedFactory{reply: reply}, logging.Default())
}

func TestPerformChestPain(t *testing.T) {
	reply := `{"severity":4,"department":"Cardiology","is_emergency":false,` +
		`"risks":["possible acute coronary syndrome"],` +
		`"summary":"Chest pain radiating to the left arm suggests a cardiac origin.",` +
		`"assigned_doctors":["cardiologist","pulmonologist"]}`

	r, specialists, err := newTestEngine(reply).Perform(context.Background(), "severe chest pain radiating to left arm", nil)
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if r.Severity < 4 {
		t.Fatalf("expected severity >= 4, got %d", r.Severity)
	}
	if len(specialists) != 2 || specialists[0].ID != "cardiologist" {
		t.Fatalf("unexpected specialists: %#v", specialists)
	}
}

func TestPerformFallbackIsDeterministic(t *testing.T) {
	engine := newTestEngine("I'm sorry, I can't produce JSON right now.")

	first, specialists, err := engine.Perform(context.Background(), "headache", nil)
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	second, _, err := engine.Perform(context.Background(), "headache", nil)
	if err != nil {
		t.Fatalf("perform: %v", err)
	}

	want := Fallback()
	if !reflect.DeepEqual(first, want) || !reflect.DeepEqual(second, want) {
		t.Fatalf("fallback drifted:\nfirst:  %#v\nsecond: %#v\nwant:   %#v", first, second, want)
	}
	if len(specialists) != 1 || specialists[0].ID != prompt.DefaultSpecialist().ID {
		t.Fatalf("fallback must assign exactly the default specialist: %#v", specialists)
	}
}

func TestPerformOutOfRangeSeverityFallsBack(t *testing.T) {
	r, _, err := newTestEngine(`{"severity":9,"department":"Cardiology","assigned_doctors":["cardiologist"]}`).
		Perform(context.Background(), "chest pain", nil)
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if !reflect.DeepEqual(r, Fallback()) {
		t.Fatalf("expected fallback, got %#v", r)
	}
}

func TestPerformDropsUnknownSpecialists(t *testing.T) {
	reply := `{"severity":2,"department":"Dermatology","risks":[],"summary":"s",` +
		`"assigned_doctors":["dermatologist","astrologist"]}`

	_, specialists, err := newTestEngine(reply).Perform(context.Background(), "rash", nil)
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if len(specialists) != 1 || specialists[0].ID != "dermatologist" {
		t.Fatalf("unknown ids must be dropped: %#v", specialists)
	}
}

func TestPerformAllUnknownGetsDefault(t *testing.T) {
	reply := `{"severity":2,"department":"General","assigned_doctors":["witch_doctor"]}`

	_, specialists, err := newTestEngine(reply).Perform(context.Background(), "fatigue", nil)
	if err != nil {
		t.Fatalf("perform: %v", err)
	}
	if len(specialists) != 1 || specialists[0].ID != prompt.DefaultSpecialist().ID {
		t.Fatalf("empty assignment must yield the default specialist: %#v", specialists)
	}
}

func TestRenderNote(t *testing.T) {
	note := RenderNote(Result{
		Severity:    5,
		Department:  "Cardiology",
		IsEmergency: true,
		Summary:     "Suspected myocardial infarction.",
		Risks:       []string{"cardiac arrest"},
	})
	for _, want := range []string{"severity 5/5", "Cardiology", "emergency", "Suspected myocardial infarction.", "- cardiac arrest"} {
		if !strings.Contains(note, want) {
			t.Fatalf("note missing %q:\n%s", want, note)
		}
	}
}
