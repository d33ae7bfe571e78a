package services

import (
	"fmt"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go"

	"restaurant-queue/models"
	"restaurant-queue/utils"
)

// NotifyService pushes queue updates to customer devices through PubNub.
// Each entry has its own channel; the staff dashboard listens on the shared
// list channel. Pushes are fire-and-forget: a delivery failure never fails
// the queue operation that triggered it.
type NotifyService struct {
	pubnub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewNotifyService(pn *pubnub.PubNub) *NotifyService {
	return &NotifyService{
		pubnub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub", 5, 30*time.Second),
	}
}

// EntryChannel names the per-customer push channel.
func EntryChannel(id string) string {
	return fmt.Sprintf("entry-%s", id)
}

// ListChannel is the shared channel carrying the full queue.
const ListChannel = "queue-list"

// PublishEntry pushes the merged view of one entry to its channel.
func (n *NotifyService) PublishEntry(id string, view models.QueueStatus) {
	n.publish(EntryChannel(id), map[string]any{
		"type":                "entry_update",
		"id":                  id,
		"status":              view.Entry.Status,
		"position":            view.Position,
		"estimated_wait_time": view.EstimatedWaitTime,
	})
}

// PublishFinal tells an entry's watchers service ended, completed or
// skipped.
func (n *NotifyService) PublishFinal(id string, st models.EntryStatus) {
	n.publish(EntryChannel(id), map[string]any{
		"type":   "entry_update",
		"id":     id,
		"status": st,
	})
}

// PublishRemoval tells an entry's watchers it left the queue.
func (n *NotifyService) PublishRemoval(id string) {
	n.publish(EntryChannel(id), map[string]any{
		"type": "entry_removed",
		"id":   id,
	})
}

// PublishList pushes the combined waiting+serving set to the list channel.
func (n *NotifyService) PublishList(entries []models.QueueEntry) {
	n.publish(ListChannel, map[string]any{
		"type":    "queue_update",
		"entries": entries,
	})
}

func (n *NotifyService) publish(channel string, message map[string]any) {
	if n == nil || n.pubnub == nil {
		return
	}

	err := n.breaker.Execute(func() error {
		_, _, err := n.pubnub.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return err
	})
	if err != nil {
		slog.Warn("push publish failed", "channel", channel, "error", err)
	}
}
