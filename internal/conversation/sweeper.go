package conversation

import (
	"context"
	"time"

	"github.com/dezyclinic/clinic-assistant/internal/observability/metrics"
	"github.com/dezyclinic/clinic-assistant/pkg/logging"
)

// Sweeper periodically removes sessions that have been idle past their
// retention window. Redis expiry already reclaims most keys; the sweep
// catches sessions whose TTL was refreshed but whose conversation went
// stale, and keeps the retention rule enforceable independently of TTL.
type Sweeper struct {
	store    *SessionStore
	maxAge   time.Duration
	interval time.Duration
	metrics  *metrics.ChatMetrics
	logger   *logging.Logger
}

// NewSweeper builds a sweeper. Zero maxAge and interval fall back to the
// store's defaults of 24 hours and one hour.
func NewSweeper(store *SessionStore, maxAge, interval time.Duration, m *metrics.ChatMetrics, logger *logging.Logger) *Sweeper {
	if store == nil {
		panic("conversation: session store cannot be nil")
	}
	if maxAge <= 0 {
		maxAge = DefaultSessionTTL
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{store: store, maxAge: maxAge, interval: interval, metrics: m, logger: logger}
}

// Run sweeps on a ticker until the context is cancelled. It blocks, so
// callers start it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.store.DeleteExpired(ctx, s.maxAge)
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return
	}
	s.metrics.ObserveSweep(deleted)
	if deleted > 0 {
		s.logger.Info("swept expired sessions", "deleted", deleted)
	}
}
