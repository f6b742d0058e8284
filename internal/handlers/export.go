package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/export"
	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/models"
)

// ExportHandler serves calendar and spreadsheet exports of a chat's tasks
type ExportHandler struct {
	taskRepo database.TaskRepositoryInterface
	chatRepo database.ChatRepositoryInterface
	logger   *zap.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(taskRepo database.TaskRepositoryInterface, chatRepo database.ChatRepositoryInterface, log *zap.Logger) *ExportHandler {
	return &ExportHandler{taskRepo: taskRepo, chatRepo: chatRepo, logger: log}
}

// RegisterRoutes registers export routes on the router
func (h *ExportHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/export/{chat:[0-9-]+}.{format:ics|xlsx}", h.Export).Methods("GET")
}

// Export handles GET /export/{chat}.{ics|xlsx}
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	chatID, err := strconv.ParseInt(vars["chat"], 10, 64)
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "invalid chat id")
		return
	}
	format := vars["format"]

	status := models.TaskStatusOpen
	tasks, err := h.taskRepo.ListByChat(r.Context(), chatID, &status)
	if err != nil {
		h.logger.Error("export_load_failed",
			zap.Int64("chat_id", chatID),
			zap.String("error", logger.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "failed to load tasks")
		return
	}

	switch format {
	case "ics":
		body, err := export.TasksToICS(h.chatTitle(r, chatID), tasks)
		if h.exportError(w, chatID, err) {
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("tasks-%d.ics", chatID)))
		_, _ = w.Write([]byte(body))
	case "xlsx":
		body, err := export.TasksToXLSX(tasks)
		if h.exportError(w, chatID, err) {
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("tasks-%d.xlsx", chatID)))
		_, _ = w.Write(body)
	}
}

// exportError writes the error response and reports whether one occurred
func (h *ExportHandler) exportError(w http.ResponseWriter, chatID int64, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, export.ErrNothingToExport) {
		respondJSONError(w, http.StatusNotFound, "Not Found", "no exportable tasks in this chat")
		return true
	}
	h.logger.Error("export_failed",
		zap.Int64("chat_id", chatID),
		zap.String("error", logger.SanitizeError(err)),
	)
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "export failed")
	return true
}

func (h *ExportHandler) chatTitle(r *http.Request, chatID int64) string {
	chats, err := h.chatRepo.ListChats(r.Context())
	if err != nil {
		return ""
	}
	for _, c := range chats {
		if c.ID == chatID {
			return c.Title
		}
	}
	return ""
}
