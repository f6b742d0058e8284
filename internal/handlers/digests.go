package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/models"
	"github.com/Tih000/max/internal/scheduler"
)

// DigestScheduling is the slice of the digest scheduler the admin API
// uses. Satisfied by *scheduler.DigestScheduler.
type DigestScheduling interface {
	ScheduleDigest(chatID, userID int64, spec string, deliver scheduler.DigestDeliverFunc) error
	CancelDigest(chatID, userID int64)
}

// DigestHandler serves digest preference management
type DigestHandler struct {
	prefRepo database.DigestPreferenceRepositoryInterface
	digests  DigestScheduling
	logger   *zap.Logger
}

// NewDigestHandler creates a new digest handler
func NewDigestHandler(prefRepo database.DigestPreferenceRepositoryInterface, digests DigestScheduling, log *zap.Logger) *DigestHandler {
	return &DigestHandler{prefRepo: prefRepo, digests: digests, logger: log}
}

// RegisterRoutes registers digest routes on the router
func (h *DigestHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/digests/{chat:[0-9-]+}/{user:[0-9]+}", h.SetDigest).Methods("PUT")
	r.HandleFunc("/digests/{chat:[0-9-]+}/{user:[0-9]+}", h.DeleteDigest).Methods("DELETE")
}

type setDigestRequest struct {
	CronSpec string `json:"cron_spec"`
}

// SetDigest handles PUT /digests/{chat}/{user}
func (h *DigestHandler) SetDigest(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	var req setDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CronSpec == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "cron_spec is required")
		return
	}

	// Validates the spec and replaces any live job
	if err := h.digests.ScheduleDigest(chatID, userID, req.CronSpec, nil); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid cron spec")
		return
	}

	pref := &models.DigestPreference{ChatID: chatID, UserID: userID, CronSpec: req.CronSpec}
	if err := h.prefRepo.Set(r.Context(), pref); err != nil {
		h.logger.Error("digest_pref_save_failed",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.String("error", logger.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "failed to save preference")
		return
	}

	respondJSON(w, http.StatusOK, pref)
}

// DeleteDigest handles DELETE /digests/{chat}/{user}. Idempotent.
func (h *DigestHandler) DeleteDigest(w http.ResponseWriter, r *http.Request) {
	chatID, userID, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	h.digests.CancelDigest(chatID, userID)
	if err := h.prefRepo.Delete(r.Context(), chatID, userID); err != nil {
		h.logger.Error("digest_pref_delete_failed",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.String("error", logger.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "failed to delete preference")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *DigestHandler) pathIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	vars := mux.Vars(r)
	chatID, err := strconv.ParseInt(vars["chat"], 10, 64)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid chat id")
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(vars["user"], 10, 64)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return 0, 0, false
	}
	return chatID, userID, true
}
