package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"restaurant-queue/models"
	"restaurant-queue/services"
)

type StaffHandler struct {
	app          *pocketbase.PocketBase
	queueService *services.QueueService
	auth         *AuthHandler
}

func NewStaffHandler(app *pocketbase.PocketBase, queueService *services.QueueService, auth *AuthHandler) *StaffHandler {
	return &StaffHandler{
		app:          app,
		queueService: queueService,
		auth:         auth,
	}
}

// Advance - move an entry to serving, completed or skipped
func (h *StaffHandler) Advance(e *core.RequestEvent) error {
	if err := h.auth.RequireStaff(e); err != nil {
		return err
	}

	var req struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ID == "" {
		return apis.NewBadRequestError("Entry ID required", nil)
	}

	if err := h.queueService.Advance(e.Request.Context(), req.ID, models.EntryStatus(req.Status)); err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Entry advanced", "status": req.Status})
}

// Reorder - swap the waiting positions of two entries
func (h *StaffHandler) Reorder(e *core.RequestEvent) error {
	if err := h.auth.RequireStaff(e); err != nil {
		return err
	}

	var req struct {
		IDA string `json:"id_a"`
		IDB string `json:"id_b"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.IDA == "" || req.IDB == "" {
		return apis.NewBadRequestError("Both entry IDs required", nil)
	}

	if err := h.queueService.Reorder(e.Request.Context(), req.IDA, req.IDB); err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Positions swapped"})
}

// Remove - staff removal of an entry from the live queue
func (h *StaffHandler) Remove(e *core.RequestEvent) error {
	if err := h.auth.RequireStaff(e); err != nil {
		return err
	}

	var req struct {
		ID string `json:"id"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.ID == "" {
		return apis.NewBadRequestError("Entry ID required", nil)
	}

	if err := h.queueService.Remove(e.Request.Context(), req.ID); err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Entry removed"})
}

// ListQueue - dashboard view of the combined waiting and serving set
func (h *StaffHandler) ListQueue(e *core.RequestEvent) error {
	if err := h.auth.RequireStaff(e); err != nil {
		return err
	}

	entries, err := h.queueService.ListQueue(e.Request.Context())
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"entries": entries})
}

// DailyStats - today's aggregate
func (h *StaffHandler) DailyStats(e *core.RequestEvent) error {
	if err := h.auth.RequireStaff(e); err != nil {
		return err
	}

	stats, err := h.queueService.DailyStats(e.Request.Context())
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, stats)
}

// MonthlyStats - current month's aggregate
func (h *StaffHandler) MonthlyStats(e *core.RequestEvent) error {
	if err := h.auth.RequireStaff(e); err != nil {
		return err
	}

	stats, err := h.queueService.MonthlyStats(e.Request.Context())
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, stats)
}

// History - recent completions, newest first
func (h *StaffHandler) History(e *core.RequestEvent) error {
	if err := h.auth.RequireStaff(e); err != nil {
		return err
	}

	limit := 0
	if raw := e.Request.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return apis.NewBadRequestError("Invalid limit", err)
		}
		limit = parsed
	}

	history, err := h.queueService.CompletionHistory(e.Request.Context(), limit)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"history": history})
}
