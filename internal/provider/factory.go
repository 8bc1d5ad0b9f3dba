package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ocegs/panel/internal/observability/metrics"
	"github.com/ocegs/panel/pkg/logging"
)

const (
	siliconflowBaseURL = "https://api.siliconflow.cn/v1"
	modelscopeBaseURL  = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// Factory builds adapters from resolved configs. Selection is by provider
// name over a fixed set; unknown names fall back to the OpenAI-compatible
// adapter, and that fallback is logged rather than silent.
type Factory struct {
	logger     *logging.Logger
	metrics    *metrics.PanelMetrics
	tracer     trace.Tracer
	httpClient *http.Client
	bedrock    bedrockConverseAPI
}

// Option configures a Factory.
type Option func(*Factory)

// WithBedrock supplies the Bedrock runtime client used for the "bedrock"
// provider. Without it, bedrock participants get an in-line error text.
func WithBedrock(api bedrockConverseAPI) Option {
	return func(f *Factory) { f.bedrock = api }
}

// WithHTTPClient overrides the HTTP client used by hand-rolled adapters.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Factory) { f.httpClient = client }
}

// WithMetrics attaches provider-call metrics.
func WithMetrics(m *metrics.PanelMetrics) Option {
	return func(f *Factory) { f.metrics = m }
}

func NewFactory(logger *logging.Logger, opts ...Option) *Factory {
	if logger == nil {
		logger = logging.Default()
	}
	f := &Factory{
		logger: logger,
		tracer: otel.Tracer("ocegs.internal.provider"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Adapter resolves a provider name to a concrete adapter, instrumented with
// metrics and tracing.
func (f *Factory) Adapter(cfg Config) Adapter {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var inner Adapter
	switch name {
	case "openai":
		inner = newOpenAIAdapter(cfg, "")
	case "siliconflow":
		inner = newOpenAIAdapter(cfg, siliconflowBaseURL)
	case "modelscope":
		inner = newOpenAIAdapter(cfg, modelscopeBaseURL)
	case "anthropic":
		inner = newAnthropicAdapter(cfg, f.httpClient)
	case "gemini":
		inner = newGeminiAdapter(cfg)
	case "bedrock":
		inner = newBedrockAdapter(f.bedrock, cfg.Model)
	default:
		f.logger.Warn("unknown AI provider, falling back to OpenAI-compatible adapter",
			"provider", cfg.Provider,
		)
		name = "openai"
		inner = newOpenAIAdapter(cfg, "")
	}

	return &instrumentedAdapter{
		inner:    inner,
		provider: name,
		metrics:  f.metrics,
		tracer:   f.tracer,
	}
}

// instrumentedAdapter wraps a concrete adapter with metrics and a span.
type instrumentedAdapter struct {
	inner    Adapter
	provider string
	metrics  *metrics.PanelMetrics
	tracer   trace.Tracer
}

func (a *instrumentedAdapter) Complete(ctx context.Context, req Request) string {
	ctx, span := a.tracer.Start(ctx, "provider.complete")
	defer span.End()
	span.SetAttributes(attribute.String("ocegs.provider", a.provider))

	start := time.Now()
	text := a.inner.Complete(ctx, req)

	outcome := "ok"
	if IsErrorText(text) {
		outcome = "error"
	}
	a.metrics.ObserveProviderCall(a.provider, outcome, time.Since(start).Seconds())
	span.SetAttributes(attribute.String("ocegs.outcome", outcome))
	return text
}

// IsErrorText reports whether a completion is one of the adapters' in-line
// failure messages rather than model output.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, "Error connecting to ") || strings.HasPrefix(text, "Error: ")
}
