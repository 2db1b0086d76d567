package doctor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"medmatch/internal/specialty"
)

type Handler struct {
	repo        Repository
	specialties *specialty.Normalizer
	validate    *validator.Validate
	log         *zap.Logger
}

func NewHandler(repo Repository, specialties *specialty.Normalizer, log *zap.Logger) *Handler {
	return &Handler{repo: repo, specialties: specialties, validate: validator.New(), log: log}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := SearchFilter{
		Name:      strings.TrimSpace(q.Get("name")),
		Specialty: strings.TrimSpace(q.Get("specialty")),
		Location:  strings.TrimSpace(q.Get("location")),
	}
	if err := h.validate.Struct(f); err != nil {
		http.Error(w, "Invalid search", http.StatusBadRequest)
		return
	}
	// Synonyms search under their canonical label; unknown text is matched as typed.
	if h.specialties.Known(f.Specialty) {
		f.Specialty = h.specialties.Normalize(f.Specialty)
	}

	ds, err := h.repo.Search(r.Context(), f)
	if err != nil {
		h.log.Error("doctor search failed", zap.Error(err))
		http.Error(w, "Search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"doctors": ds})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
		return
	}

	d, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Doctor not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("doctor lookup failed", zap.Int64("doctor_id", id), zap.Error(err))
		http.Error(w, "Lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, d)
}

func (h *Handler) Specialties(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"specialties": h.specialties.Canonical()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/doctors", h.Search)
	r.Get("/doctors/{id}", h.Profile)
	r.Get("/specialties", h.Specialties)
}
