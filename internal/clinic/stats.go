package clinic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dezyclinic/clinic-assistant/pkg/logging"
)

// Stats is the aggregate view served to the admin dashboard.
type Stats struct {
	TotalAppointments int64 `json:"totalAppointments"`
	TotalCalls        int64 `json:"totalCalls"`
}

// statsDB is the database surface needed by StatsRepository.
type statsDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StatsRepository queries admin metrics from the database.
type StatsRepository struct {
	db statsDB
}

// NewStatsRepository creates a stats repository backed by a pgx pool.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	if pool == nil {
		panic("clinic: pgx pool required for stats")
	}
	return &StatsRepository{db: pool}
}

// NewStatsRepositoryWithDB allows injecting a mock database for testing.
func NewStatsRepositoryWithDB(db statsDB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats counts live appointments (Scheduled or Rescheduled) and recorded
// chat turns.
func (r *StatsRepository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	appointmentsQuery := `SELECT COUNT(*) FROM appointments WHERE status IN ('Scheduled', 'Rescheduled')`
	if err := r.db.QueryRow(ctx, appointmentsQuery).Scan(&stats.TotalAppointments); err != nil {
		return nil, fmt.Errorf("clinic stats: count appointments: %w", err)
	}

	callsQuery := `SELECT COUNT(*) FROM call_logs`
	if err := r.db.QueryRow(ctx, callsQuery).Scan(&stats.TotalCalls); err != nil {
		return nil, fmt.Errorf("clinic stats: count calls: %w", err)
	}

	return stats, nil
}

// StatsHandler serves GET /admin/stats.
type StatsHandler struct {
	repo   *StatsRepository
	logger *logging.Logger
}

// NewStatsHandler creates a stats HTTP handler.
func NewStatsHandler(repo *StatsRepository, logger *logging.Logger) *StatsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{repo: repo, logger: logger}
}

// GetStats returns aggregate clinic metrics.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context())
	if err != nil {
		h.logger.Error("failed to get clinic stats", "error", err)
		http.Error(w, `{"error": "Failed to fetch stats"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode clinic stats", "error", err)
	}
}
