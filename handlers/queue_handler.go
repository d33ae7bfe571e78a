package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"restaurant-queue/internal/status"
	"restaurant-queue/security"
	"restaurant-queue/services"
)

type QueueHandler struct {
	app          *pocketbase.PocketBase
	queueService *services.QueueService
	limiter      *security.RateLimiter
}

func NewQueueHandler(app *pocketbase.PocketBase, queueService *services.QueueService, limiter *security.RateLimiter) *QueueHandler {
	return &QueueHandler{
		app:          app,
		queueService: queueService,
		limiter:      limiter,
	}
}

// Join - customer joins the line
func (h *QueueHandler) Join(e *core.RequestEvent) error {
	if h.limiter != nil {
		if err := h.limiter.AllowJoin(e.Request.Context(), e.RealIP()); err != nil {
			return apis.NewApiError(http.StatusTooManyRequests, "Too many join attempts. Please try again later.", nil)
		}
	}

	var req struct {
		Name      string `json:"name"`
		PartySize int    `json:"party_size"`
		Phone     string `json:"phone"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()

	id, err := h.queueService.Join(ctx, req.Name, req.PartySize, req.Phone)
	if err != nil {
		return mapServiceError(err)
	}

	view, err := h.queueService.GetStatus(ctx, id)
	if err != nil {
		// The entry was created; report it even if the follow-up read failed.
		return e.JSON(http.StatusOK, map[string]any{"id": id})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"id":                  id,
		"position":            view.Position,
		"estimated_wait_time": view.EstimatedWaitTime,
	})
}

// GetStatus - current rank and wait estimate for one entry
func (h *QueueHandler) GetStatus(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	if id == "" {
		return apis.NewBadRequestError("Entry ID required", nil)
	}

	view, err := h.queueService.GetStatus(e.Request.Context(), id)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, view)
}

// Search - look an entry up by phone number
func (h *QueueHandler) Search(e *core.RequestEvent) error {
	phone := e.Request.URL.Query().Get("phone")
	if phone == "" {
		return apis.NewBadRequestError("Phone required", nil)
	}

	entry, err := h.queueService.Search(e.Request.Context(), phone)
	if err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, entry)
}

// Leave - customer withdraws from the line
func (h *QueueHandler) Leave(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	if id == "" {
		return apis.NewBadRequestError("Entry ID required", nil)
	}

	if err := h.queueService.Remove(e.Request.Context(), id); err != nil {
		return mapServiceError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Left the queue"})
}

// mapServiceError translates the service error taxonomy into API errors.
func mapServiceError(err error) error {
	switch {
	case status.IsValidation(err):
		return apis.NewBadRequestError(err.Error(), nil)
	case status.IsNotFound(err):
		return apis.NewNotFoundError(err.Error(), nil)
	case status.IsInvalidTransition(err):
		return apis.NewBadRequestError(err.Error(), nil)
	default:
		return apis.NewApiError(http.StatusInternalServerError, "Queue operation failed", err)
	}
}
