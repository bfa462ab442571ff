package resident

import (
	"sync"
	"time"
)

// Lifecycle event names.
const (
	EventLoadStart = "load_start"
	EventLoadDone  = "load_done"
	EventLoadError = "load_error"
	EventRelease   = "release"
)

// Event is one lifecycle transition of the managed artifact.
type Event struct {
	Name     string
	Resource string
	Time     time.Time
	Fields   map[string]any
}

// EventPublisher receives events from the manager. Publish is called with
// the manager lock held; it must not block or call back into the manager.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// History retains the most recent events in a fixed ring.
type History struct {
	mu   sync.Mutex
	ring []Event
	next int
	full bool
}

const defaultHistorySize = 32

func NewHistory(size int) *History {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &History{ring: make([]Event, size)}
}

func (h *History) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	h.mu.Lock()
	h.ring[h.next] = e
	h.next = (h.next + 1) % len(h.ring)
	if h.next == 0 {
		h.full = true
	}
	h.mu.Unlock()
}

// Events returns the retained events, oldest first.
func (h *History) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		return append([]Event(nil), h.ring[:h.next]...)
	}
	out := make([]Event, 0, len(h.ring))
	out = append(out, h.ring[h.next:]...)
	return append(out, h.ring[:h.next]...)
}

// Names returns the retained event names, oldest first.
func (h *History) Names() []string {
	evts := h.Events()
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.Name
	}
	return out
}
