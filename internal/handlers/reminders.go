package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Tih000/max/internal/logger"
)

// ReminderAcker marks a reminder delivered and cancels its live timer.
// Satisfied by *scheduler.ReminderScheduler.
type ReminderAcker interface {
	MarkDelivered(ctx context.Context, id uuid.UUID) error
}

// ReminderHandler serves manual reminder acknowledgement
type ReminderHandler struct {
	acker  ReminderAcker
	logger *zap.Logger
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(acker ReminderAcker, log *zap.Logger) *ReminderHandler {
	return &ReminderHandler{acker: acker, logger: log}
}

// RegisterRoutes registers reminder routes on the router
func (h *ReminderHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/reminders/{id}/delivered", h.MarkDelivered).Methods("POST")
}

// MarkDelivered handles POST /reminders/{id}/delivered. Repeated calls
// are idempotent.
func (h *ReminderHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid reminder id")
		return
	}

	if err := h.acker.MarkDelivered(r.Context(), id); err != nil {
		h.logger.Error("reminder_ack_failed",
			zap.String("reminder_id", id.String()),
			zap.String("error", logger.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "failed to mark delivered")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"reminder_id": id.String(), "status": "delivered"})
}
