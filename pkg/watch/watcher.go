// Package watch exposes record change streams as channel subscriptions with
// an explicit lifecycle.
package watch

import (
	"context"
	"sync"

	"github.com/assetflow-io/assetflow/pkg/eventbus"
	"github.com/assetflow-io/assetflow/pkg/events"
	"github.com/assetflow-io/assetflow/pkg/models"
)

// ChangeKind classifies a record change notification.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeCommented ChangeKind = "commented"
)

// RecordChange is one change notification. Record is nil for deletions.
type RecordChange struct {
	Kind       ChangeKind        `json:"kind"`
	RecordID   string            `json:"record_id"`
	EntityType models.EntityType `json:"entity_type,omitempty"`
	Record     *models.Record    `json:"record,omitempty"`
}

// Filter narrows a subscription. Zero values match everything. Delivery is
// monotonic per record; no ordering is guaranteed across records.
type Filter struct {
	EntityType models.EntityType
	RecordID   string
}

func (f Filter) matches(change RecordChange) bool {
	if f.EntityType != "" && change.EntityType != f.EntityType {
		return false
	}

	if f.RecordID != "" && change.RecordID != f.RecordID {
		return false
	}

	return true
}

// Subscription is one live change stream. Callers must Unsubscribe when done
// or the watcher keeps delivering into the buffer.
type Subscription struct {
	id      string
	filter  Filter
	changes chan RecordChange
	watcher *Watcher
	once    sync.Once
}

// Changes returns the stream. It is closed by Unsubscribe.
func (s *Subscription) Changes() <-chan RecordChange {
	return s.changes
}

// Unsubscribe detaches the stream and closes its channel. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.watcher.remove(s.id)
		close(s.changes)
	})
}

const subscriptionBuffer = 64

// Watcher fans record change events out to filtered subscriptions. It
// registers itself on the event bus once; Start must be called before
// changes flow.
type Watcher struct {
	bus eventbus.EventBus

	mu   sync.RWMutex
	subs map[string]*Subscription
}

func NewWatcher(bus eventbus.EventBus) *Watcher {
	return &Watcher{
		bus:  bus,
		subs: make(map[string]*Subscription),
	}
}

// Start registers the bus handlers and begins consuming the change topic.
func (w *Watcher) Start(ctx context.Context) error {
	for _, eventType := range []events.EventType{
		events.RecordCreatedEvent,
		events.RecordUpdatedEvent,
		events.RecordDeletedEvent,
		events.RecordCommentedEvent,
	} {
		if err := w.bus.Handle(eventType, w.dispatch); err != nil {
			return err
		}
	}

	return w.bus.Subscribe(ctx)
}

// Subscribe opens a new change stream matching the filter.
func (w *Watcher) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		id:      w.bus.GenerateID(),
		filter:  filter,
		changes: make(chan RecordChange, subscriptionBuffer),
		watcher: w,
	}

	w.mu.Lock()
	w.subs[sub.id] = sub
	w.mu.Unlock()

	return sub
}

func (w *Watcher) remove(id string) {
	w.mu.Lock()
	delete(w.subs, id)
	w.mu.Unlock()
}

func (w *Watcher) dispatch(_ context.Context, event any) error {
	change, ok := changeFromEvent(event)
	if !ok {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, sub := range w.subs {
		if !sub.filter.matches(change) {
			continue
		}

		// A slow consumer drops its own notifications rather than blocking
		// delivery to every other subscriber.
		select {
		case sub.changes <- change:
		default:
		}
	}

	return nil
}

func changeFromEvent(event any) (RecordChange, bool) {
	switch e := event.(type) {
	case *events.RecordCreated:
		return RecordChange{Kind: ChangeCreated, RecordID: e.Record.ID, EntityType: e.Record.EntityType, Record: e.Record}, true
	case *events.RecordUpdated:
		return RecordChange{Kind: ChangeUpdated, RecordID: e.Record.ID, EntityType: e.Record.EntityType, Record: e.Record}, true
	case *events.RecordDeleted:
		return RecordChange{Kind: ChangeDeleted, RecordID: e.RecordID, EntityType: e.EntityType}, true
	case *events.RecordCommented:
		return RecordChange{Kind: ChangeCommented, RecordID: e.RecordID}, true
	default:
		return RecordChange{}, false
	}
}
