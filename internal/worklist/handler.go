package worklist

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"camclinic/internal/ports"
)

// Handler exposes the worklist over HTTP.
type Handler struct {
	provider ports.WorklistProvider
	log      *slog.Logger
}

func NewHandler(provider ports.WorklistProvider, log *slog.Logger) *Handler {
	return &Handler{provider: provider, log: log}
}

// Routes mounts GET / and GET /{id}.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// List handles GET /api/worklist.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	patients, err := h.provider.List(r.Context())
	if err != nil {
		h.log.Error("list worklist failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, patients)
}

// Get handles GET /api/worklist/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	patient, ok, err := h.provider.ByID(r.Context(), id)
	if err != nil {
		h.log.Error("get patient failed", slog.String("id", id), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
