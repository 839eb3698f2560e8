// Package api exposes the reasoning engine and memory modules over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/action"
	"github.com/helios-eo/skywatch/internal/engine"
	"github.com/helios-eo/skywatch/internal/memory"
	"github.com/helios-eo/skywatch/internal/tools"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine     *engine.Engine
	registry   *action.Registry
	catalog    *tools.Catalog
	working    *memory.WorkingMemory
	episodic   *memory.EpisodicMemory
	semantic   *memory.SemanticMemory
	procedural *memory.ProceduralMemory
	logger     *zap.Logger

	// The engine serves one run at a time.
	runMu sync.Mutex
}

// NewHandler creates a new API handler.
func NewHandler(
	eng *engine.Engine,
	registry *action.Registry,
	catalog *tools.Catalog,
	working *memory.WorkingMemory,
	episodic *memory.EpisodicMemory,
	semantic *memory.SemanticMemory,
	procedural *memory.ProceduralMemory,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		engine:     eng,
		registry:   registry,
		catalog:    catalog,
		working:    working,
		episodic:   episodic,
		semantic:   semantic,
		procedural: procedural,
		logger:     logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Post("/reason", h.reason)

		r.Get("/actions", h.listActions)
		r.Get("/tools", h.listTools)

		r.Get("/memory/stats", h.memoryStats)
		r.Get("/memory/episodic", h.listEpisodes)
		r.Get("/memory/semantic", h.listFacts)
		r.Get("/memory/procedural", h.listProcedures)
		r.Delete("/memory", h.clearMemory)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "skywatch"})
}

func (h *Handler) reason(w http.ResponseWriter, r *http.Request) {
	var situation engine.Situation
	if err := json.NewDecoder(r.Body).Decode(&situation); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if situation.TaskDescription == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_description is required"})
		return
	}

	h.runMu.Lock()
	result := h.engine.Reason(r.Context(), situation)
	h.runMu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Summarize())
}

func (h *Handler) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Definitions())
}

func (h *Handler) memoryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"working":    map[string]any{"size": h.working.Size()},
		"episodic":   h.episodic.Statistics(),
		"semantic":   h.semantic.Statistics(),
		"procedural": h.procedural.Statistics(),
	})
}

func (h *Handler) listEpisodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.episodic.RecentEpisodes(limitParam(r, 10)))
}

func (h *Handler) listFacts(w http.ResponseWriter, r *http.Request) {
	limit := limitParam(r, 10)
	if concept := r.URL.Query().Get("concept"); concept != "" {
		writeJSON(w, http.StatusOK, h.semantic.GetByConcept(concept, limit))
		return
	}
	writeJSON(w, http.StatusOK, h.semantic.Retrieve(memory.FactQuery{}, limit))
}

func (h *Handler) listProcedures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.procedural.Retrieve(memory.ProcedureQuery{}, limitParam(r, 10)))
}

func (h *Handler) clearMemory(w http.ResponseWriter, r *http.Request) {
	h.working.ClearAll()
	h.episodic.Clear()
	h.semantic.Clear()
	h.procedural.Clear()
	h.logger.Info("all memories cleared")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func limitParam(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
