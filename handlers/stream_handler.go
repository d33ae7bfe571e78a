package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"restaurant-queue/models"
)

// StreamStatus - server-sent events feed of one entry's merged view. The
// first event carries the current state; later events follow every queue
// mutation and the periodic estimate broadcast. The watch is torn down
// when the client disconnects.
func (h *QueueHandler) StreamStatus(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	if id == "" {
		return apis.NewBadRequestError("Entry ID required", nil)
	}

	updates := make(chan []byte, 8)
	unsubscribe, err := h.queueService.SubscribeEntry(e.Request.Context(), id, func(view models.QueueStatus) {
		data, err := json.Marshal(view)
		if err != nil {
			return
		}
		offerLatest(updates, data)
	})
	if err != nil {
		return mapServiceError(err)
	}
	defer unsubscribe()

	return serveSSE(e, updates)
}

// StreamQueue - server-sent events feed of the combined queue for the
// staff dashboard.
func (h *StaffHandler) StreamQueue(e *core.RequestEvent) error {
	if err := h.auth.RequireStaff(e); err != nil {
		return err
	}

	updates := make(chan []byte, 8)
	unsubscribe, err := h.queueService.SubscribeList(e.Request.Context(), func(entries []models.QueueEntry) {
		data, err := json.Marshal(entries)
		if err != nil {
			return
		}
		offerLatest(updates, data)
	})
	if err != nil {
		return mapServiceError(err)
	}
	defer unsubscribe()

	return serveSSE(e, updates)
}

// offerLatest queues data without blocking. When a slow client has filled
// the buffer, the oldest pending update is discarded to make room, so the
// client converges on current state instead of replaying a stale backlog.
func offerLatest(updates chan []byte, data []byte) {
	select {
	case updates <- data:
		return
	default:
	}
	select {
	case <-updates:
	default:
	}
	select {
	case updates <- data:
	default:
	}
}

// serveSSE streams marshaled events until the client disconnects.
func serveSSE(e *core.RequestEvent, updates <-chan []byte) error {
	flusher, ok := e.Response.(http.Flusher)
	if !ok {
		return apis.NewApiError(http.StatusInternalServerError, "Streaming unsupported", nil)
	}

	e.Response.Header().Set("Content-Type", "text/event-stream")
	e.Response.Header().Set("Cache-Control", "no-cache")
	e.Response.Header().Set("Connection", "keep-alive")
	e.Response.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := e.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-updates:
			if _, err := fmt.Fprintf(e.Response, "data: %s\n\n", data); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
