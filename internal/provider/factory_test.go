package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ocegs/panel/pkg/logging"
)

func unwrap(t *testing.T, a Adapter) Adapter {
	t.Helper()
	wrapped, ok := a.(*instrumentedAdapter)
	if !ok {
		t.Fatalf("expected instrumented adapter, got %T", a)
	}
	return wrapped.inner
}

func TestFactorySelection(t *testing.T) {
	f := NewFactory(logging.Default())

	tests := []struct {
		provider string
		wantType string
	}{
		{"openai", "*provider.OpenAIAdapter"},
		{"OpenAI", "*provider.OpenAIAdapter"},
		{"siliconflow", "*provider.OpenAIAdapter"},
		{"modelscope", "*provider.OpenAIAdapter"},
		{"anthropic", "*provider.AnthropicAdapter"},
		{"gemini", "*provider.GeminiAdapter"},
		{"bedrock", "*provider.BedrockAdapter"},
		{"mystery-lab", "*provider.OpenAIAdapter"},
	}
	for _, tt := range tests {
		inner := unwrap(t, f.Adapter(Config{Provider: tt.provider, Model: "m"}))
		if got := typeName(inner); got != tt.wantType {
			t.Fatalf("provider %q: got %s, want %s", tt.provider, got, tt.wantType)
		}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *OpenAIAdapter:
		return "*provider.OpenAIAdapter"
	case *AnthropicAdapter:
		return "*provider.AnthropicAdapter"
	case *GeminiAdapter:
		return "*provider.GeminiAdapter"
	case *BedrockAdapter:
		return "*provider.BedrockAdapter"
	default:
		return "unknown"
	}
}

func TestAliasDefaultBaseURLs(t *testing.T) {
	f := NewFactory(logging.Default())

	sf := unwrap(t, f.Adapter(Config{Provider: "siliconflow"})).(*OpenAIAdapter)
	if sf.target != siliconflowBaseURL {
		t.Fatalf("unexpected siliconflow target: %s", sf.target)
	}

	// An explicit base URL beats the alias default.
	custom := unwrap(t, f.Adapter(Config{Provider: "siliconflow", BaseURL: "https://proxy.local/v1"})).(*OpenAIAdapter)
	if custom.target != "https://proxy.local/v1" {
		t.Fatalf("explicit base URL must win: %s", custom.target)
	}
}

func TestOpenAIAdapterReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"likely angina"}}]}`))
	}))
	defer srv.Close()

	f := NewFactory(logging.Default())
	adapter := f.Adapter(Config{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k", BaseURL: srv.URL + "/v1"})

	got := adapter.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: RoleUser, Content: "chest pain"}},
	})
	if got != "likely angina" {
		t.Fatalf("unexpected completion: %q", got)
	}
}

func TestOpenAIAdapterTransportErrorBecomesText(t *testing.T) {
	f := NewFactory(logging.Default())
	// Nothing listens here: the dial error must come back as text.
	adapter := f.Adapter(Config{Provider: "openai", Model: "m", APIKey: "k", BaseURL: "http://127.0.0.1:1/v1"})

	got := adapter.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	if !IsErrorText(got) {
		t.Fatalf("expected in-line error text, got %q", got)
	}
}

func TestAnthropicAdapterExtractsSystem(t *testing.T) {
	var captured struct {
		System   string                   `json:"system"`
		Messages []map[string]interface{} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("missing anthropic-version header, got %q", got)
		}
		if err := jsonDecode(r, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"consider an ECG"}]}`))
	}))
	defer srv.Close()

	f := NewFactory(logging.Default())
	adapter := f.Adapter(Config{Provider: "anthropic", Model: "claude-sonnet-4", APIKey: "k", BaseURL: srv.URL})

	got := adapter.Complete(context.Background(), Request{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "you are a cardiologist"},
			{Role: RoleUser, Content: "chest pain"},
		},
	})
	if got != "consider an ECG" {
		t.Fatalf("unexpected completion: %q", got)
	}
	if captured.System != "you are a cardiologist" {
		t.Fatalf("system prompt not extracted: %#v", captured)
	}
	if len(captured.Messages) != 1 {
		t.Fatalf("system message must not remain in the list: %#v", captured.Messages)
	}
}

func TestAnthropicAdapterBadStatusBecomesText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFactory(logging.Default())
	adapter := f.Adapter(Config{Provider: "anthropic", Model: "m", APIKey: "k", BaseURL: srv.URL})

	got := adapter.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	if !IsErrorText(got) {
		t.Fatalf("expected in-line error text, got %q", got)
	}
}

func TestBedrockAdapterWithoutClient(t *testing.T) {
	f := NewFactory(logging.Default())
	adapter := f.Adapter(Config{Provider: "bedrock", Model: "anthropic.claude-3"})
	got := adapter.Complete(context.Background(), Request{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	if !IsErrorText(got) {
		t.Fatalf("expected in-line error text, got %q", got)
	}
}
