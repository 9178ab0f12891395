// Package router assembles the HTTP surface of the assistant service.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dezyclinic/clinic-assistant/internal/clinic"
	"github.com/dezyclinic/clinic-assistant/internal/conversation"
	"github.com/dezyclinic/clinic-assistant/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	ChatHandler    *conversation.Handler
	StatsHandler   *clinic.StatsHandler
	MetricsHandler http.Handler
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", healthCheck)

	if cfg.ChatHandler != nil {
		r.Mount("/chat", cfg.ChatHandler.Routes())
	}

	if cfg.StatsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Get("/", cfg.StatsHandler.GetStats)
			admin.Get("/stats", cfg.StatsHandler.GetStats)
		})
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
