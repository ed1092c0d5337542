package realtime

import (
	"sync"
	"time"

	"facemirror/internal/status"
)

// StatusEvent is one republished status record, kept for the debug panel.
type StatusEvent struct {
	Status     status.Record `json:"status"`
	ImagePath  string        `json:"imagePath,omitempty"`
	ReceivedAt time.Time     `json:"receivedAt"`
}

// History is a fixed-capacity circular buffer of recent status events.
type History struct {
	mu       sync.RWMutex
	buf      []StatusEvent
	capacity int
	pos      int // next write position
	full     bool
}

// NewHistory creates a history buffer with the given capacity.
func NewHistory(capacity int) *History {
	return &History{
		buf:      make([]StatusEvent, capacity),
		capacity: capacity,
	}
}

// Write adds an event to the buffer.
func (h *History) Write(event StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.pos] = event
	h.pos = (h.pos + 1) % h.capacity
	if h.pos == 0 {
		h.full = true
	}
}

// ReadAll returns all events in chronological order.
func (h *History) ReadAll() []StatusEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		result := make([]StatusEvent, h.pos)
		copy(result, h.buf[:h.pos])
		return result
	}

	result := make([]StatusEvent, h.capacity)
	copy(result, h.buf[h.pos:])
	copy(result[h.capacity-h.pos:], h.buf[:h.pos])
	return result
}
