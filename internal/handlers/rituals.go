package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clubbot/internal/models"
	"clubbot/internal/ritual"
	"clubbot/internal/store"
)

type RitualHandler struct {
	store *store.Store
}

func NewRitualHandler(s *store.Store) *RitualHandler {
	return &RitualHandler{store: s}
}

func (h *RitualHandler) List(w http.ResponseWriter, r *http.Request) {
	defs, err := h.store.ActiveDefinitions(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(defs)
}

func (h *RitualHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.RitualStatsAll(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

type createRitualRequest struct {
	Kind                 models.RitualKind       `json:"kind"`
	Cadence              models.Cadence          `json:"cadence"`
	SendHour             int                     `json:"send_hour"`
	SendMinute           int                     `json:"send_minute"`
	Weekday              *int                    `json:"weekday,omitempty"`
	Title                string                  `json:"title"`
	Body                 string                  `json:"body"`
	Buttons              []models.ResponseOption `json:"buttons"`
	RequiresSubscription bool                    `json:"requires_subscription"`
	SortOrder            int                     `json:"sort_order"`
}

func (h *RitualHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRitualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	buttons, err := json.Marshal(req.Buttons)
	if err != nil {
		http.Error(w, "invalid buttons", http.StatusBadRequest)
		return
	}
	def := models.RitualDefinition{
		Kind:                 req.Kind,
		Cadence:              req.Cadence,
		SendHour:             req.SendHour,
		SendMinute:           req.SendMinute,
		Weekday:              req.Weekday,
		Title:                req.Title,
		Body:                 req.Body,
		ResponseButtons:      string(buttons),
		Active:               true,
		RequiresSubscription: req.RequiresSubscription,
		SortOrder:            req.SortOrder,
	}
	if err := ritual.ValidateDefinition(&def); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.CreateDefinition(r.Context(), &def); err != nil {
		http.Error(w, "could not save", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(def)
}

func (h *RitualHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var body struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	err = h.store.SetDefinitionActive(r.Context(), id, body.Active)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "ritual not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
