package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ocegs/panel/cmd/mainconfig"
	"github.com/ocegs/panel/internal/api/router"
	appconfig "github.com/ocegs/panel/internal/config"
	"github.com/ocegs/panel/internal/consultation"
	"github.com/ocegs/panel/internal/notify"
	"github.com/ocegs/panel/internal/observability/metrics"
	"github.com/ocegs/panel/internal/patients"
	"github.com/ocegs/panel/internal/provider"
	"github.com/ocegs/panel/internal/settings"
	"github.com/ocegs/panel/internal/triage"
	"github.com/ocegs/panel/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting panel API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	panelMetrics := metrics.NewPanelMetrics(registry)

	factoryOpts := []provider.Option{provider.WithMetrics(panelMetrics)}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("aws config unavailable, bedrock provider disabled", "error", err)
	} else {
		factoryOpts = append(factoryOpts, provider.WithBedrock(bedrockruntime.NewFromConfig(awsCfg)))
	}
	factory := provider.NewFactory(logger, factoryOpts...)

	settingsStore := settings.NewStore(pool)
	resolver := settings.NewResolver(settingsStore)

	triageEngine := triage.NewEngine(resolver, factory, logger)
	guideEngine := triage.NewGuideEngine(resolver, factory, redisClient, logger)

	consultationStore := consultation.NewStore(pool)
	stepLock := consultation.NewStepLock(redisClient, cfg.StepLockTTL)
	engine := consultation.NewEngine(resolver, factory, logger, panelMetrics, cfg.VotingEnabled)

	serviceOpts := []consultation.ServiceOption{
		consultation.WithGuider(guideEngine),
		consultation.WithProfiles(patients.NewStore(pool)),
	}
	if cfg.SendGridAPIKey != "" {
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		serviceOpts = append(serviceOpts, consultation.WithMailer(notify.NewReportMailer(sender, logger)))
	}
	service := consultation.NewService(consultationStore, stepLock, engine, triageEngine,
		logger, panelMetrics, serviceOpts...)

	r := router.New(&router.Config{
		Logger:              logger,
		ConsultationHandler: consultation.NewHandler(service, logger),
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		JWTSecret:           cfg.JWTSecret,
		CORSAllowedOrigins:  cfg.CORSOrigins,
		RateLimitPerSecond:  cfg.RateLimitPerSecond,
		RateLimitBurst:      cfg.RateLimitBurst,
	})

	// Write timeout must cover a full panel step, which can hold a slow
	// provider call for up to a minute.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
