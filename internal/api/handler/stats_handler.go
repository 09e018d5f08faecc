package handler

import (
	"net/http"

	"github.com/notifyhub/hermes-dispatch/internal/domain"
	"github.com/notifyhub/hermes-dispatch/internal/service"
)

// StatsHandler serves a JSON snapshot of the queue table.
// Raw Prometheus metrics are available at /metrics via promhttp and are
// separate from this endpoint.
type StatsHandler struct {
	svc     *service.JobService
	observe func(domain.Stats)
}

// NewStatsHandler takes an optional observe callback that receives every
// snapshot served, used to refresh the queue gauges.
func NewStatsHandler(svc *service.JobService, observe func(domain.Stats)) *StatsHandler {
	if observe == nil {
		observe = func(domain.Stats) {}
	}
	return &StatsHandler{svc: svc, observe: observe}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Row counts by claim state and status
// @Tags     stats
// @Produce  json
// @Success  200  {object}  domain.Stats
// @Router   /api/v1/stats [get]
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Stats(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	h.observe(s)
	respondJSON(w, http.StatusOK, s)
}
