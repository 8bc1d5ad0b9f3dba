// Package router assembles the HTTP surface: public health and metrics
// endpoints plus the JWT-protected consultation resource.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ocegs/panel/internal/consultation"
	httpmiddleware "github.com/ocegs/panel/internal/http/middleware"
	"github.com/ocegs/panel/pkg/logging"
)

type Config struct {
	Logger              *logging.Logger
	ConsultationHandler *consultation.Handler
	MetricsHandler      http.Handler
	JWTSecret           string
	CORSAllowedOrigins  []string

	// Per-user budget for consultation calls. Zero disables limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New builds the chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.ConsultationHandler != nil {
		r.Route("/consultations", func(cr chi.Router) {
			cr.Use(httpmiddleware.Auth(cfg.JWTSecret))
			if cfg.RateLimitPerSecond > 0 {
				cr.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
			}
			cfg.ConsultationHandler.Routes(cr)
		})
	}

	return r
}
