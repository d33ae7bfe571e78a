package fanout

import (
	"sync"

	"restaurant-queue/models"
)

// EntryCallback receives the merged waiting+serving view of one entry.
type EntryCallback func(models.QueueStatus)

// ListCallback receives the combined queue sorted ascending by position.
type ListCallback func([]models.QueueEntry)

type entrySub struct {
	fn EntryCallback
}

type listSub struct {
	fn ListCallback
}

type entryState struct {
	snapshot *models.QueueStatus
	subs     map[*entrySub]struct{}
}

// Broker is an in-process pub/sub for queue updates, keyed by entry id.
// Mutators publish into it after every store write; customer-facing
// watchers subscribe per entry, staff dashboards subscribe to the full
// list. Delivery is synchronous under the broker lock, which is what makes
// the unsubscribe guarantee hold: once Unsubscribe returns no further
// callback can be in flight.
//
// Publishers read the store and publish without holding any common lock,
// so two racing publishes for one id can arrive out of order. Views are
// therefore versioned by the entry's updated_at stamp, written by every
// mutating script: a view older than the retained snapshot is stale and
// dropped instead of delivered.
type Broker struct {
	mu      sync.Mutex
	entries map[string]*entryState

	listSnapshot []models.QueueEntry
	listSubs     map[*listSub]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		entries:  make(map[string]*entryState),
		listSubs: make(map[*listSub]struct{}),
	}
}

// Subscribe watches one entry id. If a current snapshot exists the callback
// fires immediately with it. The returned function stops the watch; no
// callback fires after it returns.
func (b *Broker) Subscribe(id string, fn EntryCallback) func() {
	sub := &entrySub{fn: fn}

	b.mu.Lock()
	st := b.entries[id]
	if st == nil {
		st = &entryState{subs: make(map[*entrySub]struct{})}
		b.entries[id] = st
	}
	st.subs[sub] = struct{}{}
	if st.snapshot != nil {
		fn(*st.snapshot)
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		if st := b.entries[id]; st != nil {
			delete(st.subs, sub)
			if len(st.subs) == 0 && st.snapshot == nil {
				delete(b.entries, id)
			}
		}
		b.mu.Unlock()
	}
}

// SubscribeList watches the combined waiting+serving set. The current
// snapshot, when present, is delivered immediately.
func (b *Broker) SubscribeList(fn ListCallback) func() {
	sub := &listSub{fn: fn}

	b.mu.Lock()
	b.listSubs[sub] = struct{}{}
	if b.listSnapshot != nil {
		fn(b.listSnapshot)
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listSubs, sub)
		b.mu.Unlock()
	}
}

// PublishEntry fans the view of an entry out to its watchers and retains
// it as the snapshot for future subscribers. A view carrying an older
// updated_at than the retained snapshot lost a publish race and is
// discarded.
func (b *Broker) PublishEntry(id string, view models.QueueStatus) {
	b.mu.Lock()
	st := b.entries[id]
	if st == nil {
		st = &entryState{subs: make(map[*entrySub]struct{})}
		b.entries[id] = st
	}
	if st.snapshot != nil && view.Entry.UpdatedAt.Before(st.snapshot.Entry.UpdatedAt) {
		b.mu.Unlock()
		return
	}
	st.snapshot = &view
	for sub := range st.subs {
		sub.fn(view)
	}
	b.mu.Unlock()
}

// DropEntry forgets an entry's snapshot, e.g. after removal or archival.
// Watchers get no callback for an absent entry.
func (b *Broker) DropEntry(id string) {
	b.mu.Lock()
	if st := b.entries[id]; st != nil {
		st.snapshot = nil
		if len(st.subs) == 0 {
			delete(b.entries, id)
		}
	}
	b.mu.Unlock()
}

// PublishList fans the combined queue out to list watchers.
func (b *Broker) PublishList(entries []models.QueueEntry) {
	b.mu.Lock()
	b.listSnapshot = entries
	for sub := range b.listSubs {
		sub.fn(entries)
	}
	b.mu.Unlock()
}
