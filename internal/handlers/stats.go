package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clubbot/internal/enforcement"
	"clubbot/internal/models"
	"clubbot/internal/store"
)

type StatsHandler struct {
	store    *store.Store
	enforcer *enforcement.Engine
}

func NewStatsHandler(s *store.Store, e *enforcement.Engine) *StatsHandler {
	return &StatsHandler{store: s, enforcer: e}
}

func parsePeriod(r *http.Request) (models.Period, time.Time, error) {
	period := models.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = models.PeriodDaily
	}
	if period != models.PeriodDaily && period != models.PeriodWeekly {
		return "", time.Time{}, errors.New("period must be daily or weekly")
	}
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return "", time.Time{}, errors.New("date is required")
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return "", time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return period, date, nil
}

func (h *StatsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	period, date, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	acts, err := h.store.ActivityForDate(r.Context(), period, date)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(acts)
}

func (h *StatsHandler) TopUsers(w http.ResponseWriter, r *http.Request) {
	period, date, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	top, err := h.store.TopUsersForPeriod(r.Context(), period, date, 10)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(top)
}

func (h *StatsHandler) MembersHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.store.SubscriptionHealth(r.Context(), time.Now())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// RestoreMember lifts a removal for a member who renewed, letting them
// back into the group.
func (h *StatsHandler) RestoreMember(w http.ResponseWriter, r *http.Request) {
	if h.enforcer == nil {
		http.Error(w, "bot is not connected", http.StatusServiceUnavailable)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	err = h.enforcer.RestoreUser(r.Context(), id, time.Now())
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "member not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "could not restore member", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StatsHandler) WeeklyReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.store.UnpublishedReports(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}
