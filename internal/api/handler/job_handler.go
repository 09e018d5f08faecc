package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/hermes-dispatch/internal/api/middleware"
	"github.com/notifyhub/hermes-dispatch/internal/domain"
	"github.com/notifyhub/hermes-dispatch/internal/service"
)

// JobHandler puts mails on the queue.
type JobHandler struct {
	svc    *service.JobService
	logger *zap.Logger
}

func NewJobHandler(svc *service.JobService, logger *zap.Logger) *JobHandler {
	return &JobHandler{svc: svc, logger: logger}
}

// EnqueueBatchRequest is the body of POST /api/v1/jobs/batch.
type EnqueueBatchRequest struct {
	Mails []domain.EnqueueRequest `json:"mails"`
}

// Enqueue handles POST /api/v1/jobs
//
// @Summary     Queue one mail
// @Tags        jobs
// @Accept      json
// @Produce     json
// @Param       body  body      domain.EnqueueRequest  true  "Mail payload"
// @Success     201   {object}  domain.Job
// @Failure     422   {object}  map[string]string
// @Router      /api/v1/jobs [post]
func (h *JobHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	job, err := h.svc.Enqueue(r.Context(), req)
	if err != nil {
		h.logger.Warn("enqueue mail failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, job)
}

// EnqueueBatch handles POST /api/v1/jobs/batch
//
// @Summary  Queue up to 1000 mails in a single request
// @Tags     jobs
// @Accept   json
// @Produce  json
// @Param    body  body      EnqueueBatchRequest  true  "Batch payload"
// @Success  201   {object}  map[string]any
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/jobs/batch [post]
func (h *JobHandler) EnqueueBatch(w http.ResponseWriter, r *http.Request) {
	var req EnqueueBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	jobs, err := h.svc.EnqueueBatch(r.Context(), req.Mails)
	if err != nil {
		h.logger.Warn("enqueue batch failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"count": len(ids),
		"ids":   ids,
	})
}
