package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/scene-validator/internal/batch"
	"github.com/tendant/scene-validator/internal/durable"
	"github.com/tendant/scene-validator/internal/pipeline"
	"github.com/tendant/scene-validator/internal/profile"
	"github.com/tendant/scene-validator/internal/report"
	"github.com/tendant/scene-validator/pkg/validation"
)

// ReportGetter looks up a persisted report by validation id.
type ReportGetter interface {
	Get(ctx context.Context, validationID string) (*validation.ValidationReport, error)
}

// Handler exposes the validation pipeline over HTTP. Reports and Durable
// are optional; their endpoints return 503 when unconfigured.
type Handler struct {
	pipeline *pipeline.Pipeline
	batch    *batch.Coordinator
	profiles profile.Store
	reports  ReportGetter
	durable  *durable.Runtime
}

// New creates the handler.
func New(p *pipeline.Pipeline, b *batch.Coordinator, profiles profile.Store, reports ReportGetter, durableRT *durable.Runtime) *Handler {
	return &Handler{
		pipeline: p,
		batch:    b,
		profiles: profiles,
		reports:  reports,
		durable:  durableRT,
	}
}

// Routes builds the router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.handleHealth)
	r.Post("/v1/validate", h.handleValidate)
	r.Post("/v1/validate/async", h.handleValidateAsync)
	r.Post("/v1/batch", h.handleBatch)
	r.Get("/v1/validations/{validationID}", h.handleGetValidation)
	r.Get("/v1/profiles", h.handleListProfiles)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleValidate runs one scene inline and returns its report. A report
// with configuration-error status is still a report, not an HTTP error.
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validation.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if msg := validateRequest(req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	log.Printf("Validating scene: scene_id=%s profile=%s", req.SceneID, req.ProfileID)

	rep, err := h.pipeline.Run(r.Context(), req.Scene(), req.ProfileID)
	if err != nil {
		log.Printf("Validation run failed: %v", err)
		http.Error(w, fmt.Sprintf("Validation failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// handleValidateAsync enqueues a durable run and returns 202 immediately.
func (h *Handler) handleValidateAsync(w http.ResponseWriter, r *http.Request) {
	if h.durable == nil {
		http.Error(w, "durable execution not configured", http.StatusServiceUnavailable)
		return
	}

	var req validation.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if msg := validateRequest(req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	runID, err := h.durable.EnqueueValidation(r.Context(), req)
	if err != nil {
		log.Printf("Failed to enqueue validation: %v", err)
		http.Error(w, fmt.Sprintf("Failed to enqueue validation: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("Validation enqueued: run_id=%s", runID)
	writeJSON(w, http.StatusAccepted, validation.AsyncResponse{RunID: runID})
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req validation.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Scenes) == 0 {
		http.Error(w, "scenes is required", http.StatusBadRequest)
		return
	}

	log.Printf("Running batch: scenes=%d profile=%s", len(req.Scenes), req.ProfileID)

	result, err := h.batch.RunBatch(r.Context(), req.Scenes, req.ProfileID, req.MaxConcurrency)
	if err != nil {
		log.Printf("Batch run failed: %v", err)
		http.Error(w, fmt.Sprintf("Batch failed: %v", err), http.StatusInternalServerError)
		return
	}
	if req.BatchID != "" {
		result.BatchID = req.BatchID
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetValidation(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		http.Error(w, "report persistence not configured", http.StatusServiceUnavailable)
		return
	}

	validationID := chi.URLParam(r, "validationID")
	rep, err := h.reports.Get(r.Context(), validationID)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			http.Error(w, "Validation not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to load report %s: %v", validationID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

type profileSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int    `json:"version"`
	Rules   int    `json:"rules"`
}

func (h *Handler) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	lister, ok := h.profiles.(profile.Lister)
	if !ok {
		http.Error(w, "profile listing not supported", http.StatusServiceUnavailable)
		return
	}

	profiles, err := lister.List(r.Context())
	if err != nil {
		log.Printf("Failed to list profiles: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	summaries := make([]profileSummary, 0, len(profiles))
	for _, p := range profiles {
		summaries = append(summaries, profileSummary{
			ID:      p.ID,
			Name:    p.Name,
			Version: p.Version,
			Rules:   len(p.Rules),
		})
	}

	writeJSON(w, http.StatusOK, map[string][]profileSummary{"profiles": summaries})
}

func validateRequest(req validation.ValidateRequest) string {
	if req.SceneID == "" {
		return "scene_id is required"
	}
	if req.MediaURL == "" {
		return "media_url is required"
	}
	if req.ProfileID == "" {
		return "profile_id is required"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
