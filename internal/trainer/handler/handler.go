// Package handler exposes the trainer's HTTP API: job submission and model
// inspection. Jobs are published to Kafka and executed asynchronously by
// the worker.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcosfpr/adarank/internal/trainer"
	"github.com/marcosfpr/adarank/internal/trainer/store"
	apperrors "github.com/marcosfpr/adarank/pkg/errors"
	"github.com/marcosfpr/adarank/pkg/kafka"
	"github.com/marcosfpr/adarank/pkg/logger"
)

type Handler struct {
	jobs   *kafka.Producer
	store  *store.Store
	logger *slog.Logger
}

func New(jobs *kafka.Producer, st *store.Store) *Handler {
	return &Handler{
		jobs:   jobs,
		store:  st,
		logger: slog.Default().With("component", "trainer-handler"),
	}
}

// Register wires the handler's routes into mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/train", h.Train)
	mux.HandleFunc("GET /v1/models", h.ListModels)
	mux.HandleFunc("GET /v1/models/{name}", h.GetModel)
	mux.HandleFunc("DELETE /v1/models/{name}", h.DeleteModel)
}

// Train accepts a TrainJob and enqueues it on the training-jobs topic.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var job trainer.TrainJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := trainer.ValidateJob(&job); err != nil {
		var validationErr *trainer.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job.SubmittedAt = time.Now().UTC()

	if err := h.jobs.Publish(ctx, kafka.Event{Key: job.Model, Value: job}); err != nil {
		log.Error("failed to enqueue training job", "model", job.Model, "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "failed to enqueue training job")
		return
	}
	log.Info("training job accepted", "model", job.Model, "data_path", job.DataPath)
	h.writeJSON(w, http.StatusAccepted, trainer.TrainResponse{
		Model:  job.Model,
		Status: "queued",
	})
}

// ListModels returns summaries of every stored model.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list models", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "failed to list models")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"models": summaries})
}

// GetModel returns one model including its ensemble.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	model, err := h.store.Get(r.Context(), name)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to load model", "model", name, "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, model)
}

// DeleteModel removes one model by name.
func (h *Handler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.store.Delete(r.Context(), name); err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"model": name, "status": "deleted"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
