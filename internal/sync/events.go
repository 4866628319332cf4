package sync

import (
	stdsync "sync"
	"time"
)

// Sync lifecycle event types, as delivered to UI clients.
const (
	EventSyncStarted             = "sync.started"
	EventSyncCompleted           = "sync.completed"
	EventSyncItemSynced          = "sync.item_synced"
	EventSyncItemAbandoned       = "sync.item_abandoned"
	EventSyncEnqueued            = "sync.enqueued"
	EventConnectivityChanged     = "connectivity.changed"
	EventBackgroundSyncCompleted = "sync.background_completed"
)

// Event is a notification about sync activity.
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, data map[string]interface{}) Event {
	return Event{Type: eventType, Data: data, Timestamp: time.Now().Unix()}
}

// EventHandler receives sync events. Handlers must not block.
type EventHandler func(Event)

// Publisher fans events out to registered handlers.
type Publisher struct {
	mu       stdsync.RWMutex
	handlers []EventHandler
}

// Subscribe registers a handler.
func (p *Publisher) Subscribe(h EventHandler) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, h)
}

// Publish delivers an event to every handler.
func (p *Publisher) Publish(eventType string, data map[string]interface{}) {
	p.mu.RLock()
	handlers := append([]EventHandler(nil), p.handlers...)
	p.mu.RUnlock()

	ev := NewEvent(eventType, data)
	for _, h := range handlers {
		h(ev)
	}
}
