package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dezyclinic/clinic-assistant/internal/agent"
	"github.com/dezyclinic/clinic-assistant/internal/api/router"
	"github.com/dezyclinic/clinic-assistant/internal/appointments"
	"github.com/dezyclinic/clinic-assistant/internal/calendar"
	"github.com/dezyclinic/clinic-assistant/internal/calllog"
	"github.com/dezyclinic/clinic-assistant/internal/clinic"
	appconfig "github.com/dezyclinic/clinic-assistant/internal/config"
	"github.com/dezyclinic/clinic-assistant/internal/conversation"
	"github.com/dezyclinic/clinic-assistant/internal/observability/metrics"
	"github.com/dezyclinic/clinic-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	location, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("invalid clinic timezone", "timezone", cfg.ClinicTimezone, "error", err)
		os.Exit(1)
	}

	// Postgres holds appointments, call logs, and admin stats.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis holds conversation sessions.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	gemini, err := agent.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Error("failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	defer gemini.Close()

	provider, err := calendar.NewGoogleProvider(ctx, cfg.GoogleCredentialsFile, cfg.ClinicTimezone)
	if err != nil {
		logger.Error("failed to initialize Google Calendar client", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	chatMetrics := metrics.NewChatMetrics(registry)

	doctors := clinic.NewDirectory(clinic.DefaultDoctors(), cfg.DoctorCalendars)
	gateway := calendar.NewGateway(provider, logger)
	apptRepo := appointments.NewRepository(pool)
	orchestrator := appointments.NewOrchestrator(gateway, apptRepo, doctors, location, logger)

	sessionStore := conversation.NewSessionStore(redisClient,
		conversation.WithSessionTTL(cfg.SessionMaxAge))
	callLog := calllog.NewStore(pool)

	engine := conversation.NewEngine(sessionStore, gemini, orchestrator, callLog,
		chatMetrics, conversation.SystemPrompt(doctors.All()), logger)

	chatHandler := conversation.NewHandler(engine, sessionStore, logger)
	statsHandler := clinic.NewStatsHandler(clinic.NewStatsRepository(pool), logger)

	r := router.New(&router.Config{
		Logger:         logger,
		ChatHandler:    chatHandler,
		StatsHandler:   statsHandler,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	// Background sweep of stale sessions.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	sweeper := conversation.NewSweeper(sessionStore, cfg.SessionMaxAge, cfg.SessionSweepInterval, chatMetrics, logger)
	go sweeper.Run(sweepCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
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

	logger.Info("shutting down server...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
