// Package statusapi serves the read-only local status surface: the
// latest progress event and the persisted plan document. UIs poll it
// instead of re-running resolution.
package statusapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/raido/internal/plan"
	"github.com/starford/raido/internal/status"
	"github.com/starford/raido/internal/storage"
)

// Handler answers status API requests.
type Handler struct {
	tracker *status.Tracker
	store   storage.Provider
	logger  *slog.Logger
}

// NewHandler returns a Handler reading progress from tracker and the
// plan document from the managed directory.
func NewHandler(tracker *status.Tracker, store storage.Provider, logger *slog.Logger) *Handler {
	return &Handler{tracker: tracker, store: store, logger: logger}
}

// NewRouter creates a chi router with the status routes mounted.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/status", h.Status)
	r.Get("/api/plan", h.Plan)

	return r
}

// Status returns the most recent progress event.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Last())
}

// Plan serves the persisted plan document verbatim, in the same format
// the privileged installer reads.
func (h *Handler) Plan(w http.ResponseWriter, _ *http.Request) {
	if !h.store.Exists(plan.DocumentPath) {
		writeJSON(w, http.StatusNotFound, errorBody("no plan"))
		return
	}
	data, err := h.store.Read(plan.DocumentPath)
	if err != nil {
		h.logger.Error("plan read failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("plan unavailable"))
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
