package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/CheapNud/shotcutrenderqueue/internal/controller"
	"github.com/CheapNud/shotcutrenderqueue/internal/events"
	"github.com/CheapNud/shotcutrenderqueue/internal/job"
)

// Handlers contains the HTTP handlers for the control-plane API.
type Handlers struct {
	ctrl      *controller.Controller
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctrl *controller.Controller, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{ctrl: ctrl, validator: validator.New(), logger: logger}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	id, err := h.ctrl.Add(r.Context(), controller.NewJobRequest{
		SourceKind: job.SourceKind(req.SourceKind),
		SourcePath: req.SourcePath,
		OutputPath: req.OutputPath,
		Flags: job.StageFlags{
			UseTimelineRender: req.UseTimelineRender,
			UseUpscale:        req.UseUpscale,
			UpscaleVariant:    job.UpscaleVariant(req.UpscaleVariant),
			UseInterpolate:    req.UseInterpolate,
		},
	})
	if err != nil {
		if errors.Is(err, controller.ErrInvalidJob) {
			writeError(w, http.StatusBadRequest, err.Error(), "INVALID_JOB")
			return
		}
		h.logger.Error("failed to create job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	writeJSON(w, http.StatusAccepted, CreateJobResponse{ID: id, Status: string(job.StatusPending)})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	j, err := h.ctrl.Get(r.Context(), id)
	if err != nil {
		h.writeControllerErr(w, err, "job")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}

// ListActive handles GET /jobs/active requests.
func (h *Handlers) ListActive(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.ctrl.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list active jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// ListCompleted handles GET /jobs/completed requests.
func (h *Handlers) ListCompleted(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.ctrl.ListCompleted(r.Context())
	if err != nil {
		h.logger.Error("failed to list completed jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// ListFailed handles GET /jobs/failed requests.
func (h *Handlers) ListFailed(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.ctrl.ListFailed(r.Context())
	if err != nil {
		h.logger.Error("failed to list failed jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// ListDeadLetter handles GET /jobs/dead-letter requests.
func (h *Handlers) ListDeadLetter(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.ctrl.ListDeadLetter(r.Context())
	if err != nil {
		h.logger.Error("failed to list dead-lettered jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "LIST_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponses(jobs))
}

// Pause handles POST /jobs/{id}/pause requests.
func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ctrl.Pause(r.Context(), id); err != nil {
		h.writeControllerErr(w, err, "job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resume handles POST /jobs/{id}/resume requests.
func (h *Handlers) Resume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ctrl.Resume(r.Context(), id); err != nil {
		h.writeControllerErr(w, err, "job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /jobs/{id}/cancel requests.
func (h *Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ctrl.Cancel(r.Context(), id); err != nil {
		h.writeControllerErr(w, err, "job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Retry handles POST /jobs/{id}/retry requests.
func (h *Handlers) Retry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ctrl.Retry(r.Context(), id); err != nil {
		h.writeControllerErr(w, err, "job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteJob handles DELETE /jobs/{id} requests.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ctrl.Delete(r.Context(), id); err != nil {
		h.writeControllerErr(w, err, "job")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartQueue handles POST /queue/start requests.
func (h *Handlers) StartQueue(w http.ResponseWriter, r *http.Request) {
	h.ctrl.StartQueue()
	w.WriteHeader(http.StatusNoContent)
}

// StopQueue handles POST /queue/stop requests.
func (h *Handlers) StopQueue(w http.ResponseWriter, r *http.Request) {
	h.ctrl.StopQueue()
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /stats requests.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ctrl.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats", "STATS_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Pending: stats.Pending, Running: stats.Running, Paused: stats.Paused,
		Completed: stats.Completed, Failed: stats.Failed, DeadLetter: stats.DeadLetter,
		Cancelled: stats.Cancelled, IsQueuePaused: stats.IsQueuePaused,
	})
}

// Events handles GET /jobs/{id}/events, streaming progress via SSE until the
// client disconnects. Events for every job flow through one broker
// subscription; this handler filters to the requested id.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", "STREAM_UNSUPPORTED")
		return
	}

	ch, sub := h.ctrl.Subscribe()
	defer h.ctrl.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.JobID != id {
				continue
			}
			payload, err := json.Marshal(toProgressEventResponse(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handlers) writeControllerErr(w http.ResponseWriter, err error, resource string) {
	switch {
	case errors.Is(err, controller.ErrNotFound):
		writeError(w, http.StatusNotFound, resource+" not found", "NOT_FOUND")
	case errors.Is(err, controller.ErrWrongStatus):
		writeError(w, http.StatusConflict, err.Error(), "WRONG_STATUS")
	default:
		h.logger.Error("controller operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}

func toJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:                j.ID,
		Status:            string(j.GetStatus()),
		ProgressPercent:   j.ProgressPercent,
		CurrentFrame:      j.CurrentFrame,
		CurrentStageLabel: j.CurrentStageLabel,
		RetryCount:        j.RetryCount,
		MaxRetries:        j.MaxRetries,
		LastErrorMessage:  j.LastErrorMessage,
	}
}

func toJobResponses(jobs []*job.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	return out
}

func toProgressEventResponse(ev events.ProgressEvent) ProgressEventResponse {
	return ProgressEventResponse{
		JobID:           ev.JobID,
		Status:          string(ev.Status),
		ProgressPercent: ev.ProgressPercent,
		CurrentFrame:    ev.CurrentFrame,
		StageLabel:      ev.StageLabel,
		ErrorMessage:    ev.ErrorMessage,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
