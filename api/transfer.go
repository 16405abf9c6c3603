package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yashasviy/transfer-map/generator"
	"github.com/yashasviy/transfer-map/geo"
	"github.com/yashasviy/transfer-map/middleware"
	"github.com/yashasviy/transfer-map/store"
)

// Handler serves the transfer map endpoints over an owned store.
type Handler struct {
	store  *store.Store
	gen    *generator.Generator
	places *geo.Places
	proj   geo.Projector
	logger *slog.Logger
}

func NewHandler(s *store.Store, gen *generator.Generator, places *geo.Places, proj geo.Projector, logger *slog.Logger) *Handler {
	return &Handler{
		store:  s,
		gen:    gen,
		places: places,
		proj:   proj,
		logger: logger,
	}
}

// Routes mounts the endpoints. actionMW wraps the add/remove triggers only.
func (h *Handler) Routes(actionMW ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Get("/requests", h.ListRequests)
	r.Get("/lines", h.ListLines)
	r.Get("/cities", h.ListCities)
	r.Route("/actions", func(r chi.Router) {
		r.Use(actionMW...)
		r.Post("/add", h.Add)
		r.Post("/remove", h.Remove)
	})
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListRequests handles GET /requests
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

// ListCities handles GET /cities
func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gen.Cities())
}

// Add handles POST /actions/add, the UI "add" trigger.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	added, err := h.store.AddOne()
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to add transfer request", slog.Any("error", err))
		middleware.ActionsTotal.WithLabelValues("add", "error").Inc()
		writeError(w, http.StatusInternalServerError, "internal", "Failed to add transfer request")
		return
	}

	middleware.ActionsTotal.WithLabelValues("add", "ok").Inc()
	middleware.StoreSize.Set(float64(h.store.Len()))
	h.logger.InfoContext(ctx, "Added transfer request",
		slog.Int("id", added.ID),
		slog.String("from", added.From),
		slog.String("to", added.To),
		slog.Int("amount", added.Amount))
	writeJSON(w, http.StatusCreated, added)
}

// Remove handles POST /actions/remove, the UI "remove" trigger.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	removed, err := h.store.RemoveRandom()
	switch {
	case errors.Is(err, store.ErrEmpty):
		h.logger.WarnContext(ctx, "Remove requested on empty store")
		middleware.ActionsTotal.WithLabelValues("remove", "empty").Inc()
		writeError(w, http.StatusConflict, "empty", "There are no transfer requests to remove")
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "Failed to remove transfer request", slog.Any("error", err))
		middleware.ActionsTotal.WithLabelValues("remove", "error").Inc()
		writeError(w, http.StatusInternalServerError, "internal", "Failed to remove transfer request")
		return
	}

	middleware.ActionsTotal.WithLabelValues("remove", "ok").Inc()
	middleware.StoreSize.Set(float64(h.store.Len()))
	h.logger.InfoContext(ctx, "Removed transfer request", slog.Int("id", removed.ID))
	writeJSON(w, http.StatusOK, removed)
}

// ListLines handles GET /lines: every request resolved to canvas coordinates.
func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lines, err := geo.ResolveAll(h.places, h.proj, h.store.List())
	if errors.Is(err, geo.ErrCityNotFound) {
		middleware.LookupFailuresTotal.Inc()
		h.logger.WarnContext(ctx, "Unresolvable transfer request", slog.Any("error", err))
		writeError(w, http.StatusUnprocessableEntity, "city_not_found", err.Error())
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to resolve lines", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "Failed to resolve lines")
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
