package api

import (
	"context"
	"net/http"

	"github.com/okian/movierank/pkg/logger"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsProvider.GetStats(r.Context())
	if err != nil {
		logger.Get().Error(r.Context(), "failed to collect stats", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "stats_unavailable", ErrStatsUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
