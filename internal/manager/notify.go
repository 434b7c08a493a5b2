package manager

import (
	"sync"
)

// Event names a downstream data-refresh notification.
type Event string

const (
	// EventEntityMetadataChanged tells consumers to refresh entity listings.
	EventEntityMetadataChanged Event = "entity-metadata-changed"

	// EventWebResourcesChanged tells consumers to refresh web resource listings.
	EventWebResourcesChanged Event = "web-resources-changed"
)

// Notifier fans out fire-and-forget events to registered subscribers.
// Delivery is asynchronous; subscriber failures never affect the caller.
type Notifier struct {
	mu          sync.RWMutex
	subscribers []func(Event)
}

// NewNotifier builds an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers a callback for all events.
func (n *Notifier) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	n.mu.Lock()
	n.subscribers = append(n.subscribers, fn)
	n.mu.Unlock()
}

// Publish delivers the event to every subscriber on its own goroutine.
func (n *Notifier) Publish(event Event) {
	n.mu.RLock()
	subs := make([]func(Event), len(n.subscribers))
	copy(subs, n.subscribers)
	n.mu.RUnlock()
	for _, fn := range subs {
		go fn(event)
	}
}
