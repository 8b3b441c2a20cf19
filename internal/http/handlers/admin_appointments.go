package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/arlingtonsteamers/booking-agent/internal/appointments"
	"github.com/arlingtonsteamers/booking-agent/pkg/logging"
)

// AppointmentStore is the persistence surface the admin API needs.
type AppointmentStore interface {
	List(ctx context.Context, status string) ([]appointments.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, fields appointments.UpdateFields) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// AdminAppointmentsHandler exposes appointment CRUD for the dashboard.
type AdminAppointmentsHandler struct {
	store  AppointmentStore
	logger *logging.Logger
}

// NewAdminAppointmentsHandler creates the appointments admin handler.
func NewAdminAppointmentsHandler(store AppointmentStore, logger *logging.Logger) *AdminAppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAppointmentsHandler{store: store, logger: logger}
}

// List handles GET /api/appointments. An optional ?status= filter narrows
// the result.
func (h *AdminAppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	appts, err := h.store.List(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"appointments": appts,
		"total":        len(appts),
	})
}

// Get handles GET /api/appointments/{id}.
func (h *AdminAppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	appt, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			respondError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("failed to get appointment", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "failed to get appointment")
		return
	}

	respondJSON(w, http.StatusOK, appt)
}

// Update handles PATCH /api/appointments/{id} with a partial field set.
func (h *AdminAppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	var fields appointments.UpdateFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.store.Update(r.Context(), id, fields); err != nil {
		switch {
		case errors.Is(err, appointments.ErrNotFound):
			respondError(w, http.StatusNotFound, "appointment not found")
		case errors.Is(err, appointments.ErrSlotTaken):
			respondError(w, http.StatusConflict, "slot already booked")
		default:
			h.logger.Error("failed to update appointment", "error", err, "id", id)
			respondError(w, http.StatusInternalServerError, "failed to update appointment")
		}
		return
	}

	appt, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to reload appointment", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "failed to reload appointment")
		return
	}
	respondJSON(w, http.StatusOK, appt)
}

// Delete handles DELETE /api/appointments/{id}.
func (h *AdminAppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			respondError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("failed to delete appointment", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "failed to delete appointment")
		return
	}

	h.logger.Info("appointment deleted", "id", id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Stats handles GET /api/appointments/stats with per-status counts.
func (h *AdminAppointmentsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("failed to compute appointment stats", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"by_status": counts,
	})
}
