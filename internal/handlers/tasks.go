package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/models"
	"github.com/Tih000/max/internal/validation"
)

// TaskHandler serves the admin task listing
type TaskHandler struct {
	taskRepo database.TaskRepositoryInterface
	logger   *zap.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskRepo database.TaskRepositoryInterface, log *zap.Logger) *TaskHandler {
	return &TaskHandler{taskRepo: taskRepo, logger: log}
}

// RegisterRoutes registers task routes on the router
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tasks", h.ListTasks).Methods("GET")
}

// ListTasks handles GET /tasks?chat_id=&status=
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chat_id"), 10, 64)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "chat_id query parameter is required")
		return
	}

	var status *models.TaskStatus
	if s := r.URL.Query().Get("status"); s != "" {
		if err := validation.ValidateTaskStatus(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		parsed := models.TaskStatus(s)
		status = &parsed
	}

	tasks, err := h.taskRepo.ListByChat(r.Context(), chatID, status)
	if err != nil {
		h.logger.Error("task_list_failed",
			zap.Int64("chat_id", chatID),
			zap.String("error", logger.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	respondJSON(w, http.StatusOK, tasks)
}
