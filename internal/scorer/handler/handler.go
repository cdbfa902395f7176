package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/marcosfpr/adarank/internal/scorer"
	"github.com/marcosfpr/adarank/internal/scorer/modelcache"
	apperrors "github.com/marcosfpr/adarank/pkg/errors"
	"github.com/marcosfpr/adarank/pkg/logger"
	"github.com/marcosfpr/adarank/pkg/metrics"
)

type Handler struct {
	cache        *modelcache.ModelCache
	metrics      *metrics.Metrics
	maxDocuments int
	logger       *slog.Logger
}

func New(cache *modelcache.ModelCache, m *metrics.Metrics, maxDocuments int) *Handler {
	return &Handler{
		cache:        cache,
		metrics:      m,
		maxDocuments: maxDocuments,
		logger:       slog.Default().With("component", "scorer-handler"),
	}
}

// Register wires the handler's routes into mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/rank", h.Rank)
	mux.HandleFunc("POST /v1/score", h.Score)
}

// Rank scores every document in the request with the named model and
// returns them ordered descending by score, ties broken by request order.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req scorer.RankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Model == "" {
		h.writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	if len(req.Documents) == 0 {
		h.writeError(w, http.StatusBadRequest, "documents must not be empty")
		return
	}
	if h.maxDocuments > 0 && len(req.Documents) > h.maxDocuments {
		h.writeError(w, http.StatusBadRequest, "too many documents")
		return
	}

	model, cached, err := h.cache.Get(ctx, req.Model)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		result := "error"
		if status == http.StatusNotFound {
			result = "not_found"
		} else {
			log.Error("failed to load model", "model", req.Model, "error", err)
		}
		h.count(result)
		h.writeError(w, status, err.Error())
		return
	}
	cacheStatus := "miss"
	if cached {
		cacheStatus = "hit"
	}

	scores := make([]float64, len(req.Documents))
	for i, doc := range req.Documents {
		dp, err := doc.ToDataPoint()
		if err != nil {
			h.count("error")
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		scores[i] = model.Ensemble.Score(dp)
	}

	perm := make([]int, len(scores))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		return scores[perm[a]] > scores[perm[b]]
	})

	results := make([]scorer.ScoredDocument, len(perm))
	for rank, i := range perm {
		results[rank] = scorer.ScoredDocument{
			ID:    req.Documents[i].ID,
			Score: scores[i],
			Rank:  rank + 1,
		}
	}

	h.count("ok")
	if h.metrics != nil {
		h.metrics.RankLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
		h.metrics.RankedDocumentsCount.Observe(float64(len(results)))
	}
	log.Info("documents ranked",
		"model", req.Model,
		"documents", len(results),
		"cache_status", cacheStatus,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	h.writeJSON(w, http.StatusOK, scorer.RankResponse{
		Model:   req.Model,
		Results: results,
	})
}

// Score returns the raw ensemble score of a single document.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scorer.ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Model == "" {
		h.writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	model, _, err := h.cache.Get(ctx, req.Model)
	if err != nil {
		h.count("error")
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}
	dp, err := req.Document.ToDataPoint()
	if err != nil {
		h.count("error")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.count("ok")
	h.writeJSON(w, http.StatusOK, scorer.ScoredDocument{
		ID:    req.Document.ID,
		Score: model.Ensemble.Score(dp),
		Rank:  1,
	})
}

func (h *Handler) count(result string) {
	if h.metrics != nil {
		h.metrics.RankRequestsTotal.WithLabelValues(result).Inc()
	}
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
