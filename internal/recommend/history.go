package recommend

import (
	"sync"

	"cinematch/internal/models"
)

const DefaultHistorySize = 5

// History is a bounded recently-viewed list, newest first. Viewing the
// same movie twice in a row records it once.
type History struct {
	mu       sync.Mutex
	capacity int
	events   []models.ViewEvent
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{capacity: capacity}
}

// Add records ev and reports whether it changed the list.
func (h *History) Add(ev models.ViewEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) > 0 && h.events[0].MovieID == ev.MovieID {
		return false
	}
	h.events = append([]models.ViewEvent{ev}, h.events...)
	if len(h.events) > h.capacity {
		h.events = h.events[:h.capacity]
	}
	return true
}

// Load replaces the list with events given oldest first, applying the same
// rules as Add.
func (h *History) Load(oldestFirst []models.ViewEvent) {
	h.mu.Lock()
	h.events = nil
	h.mu.Unlock()
	for _, ev := range oldestFirst {
		h.Add(ev)
	}
}

func (h *History) Items() []models.ViewEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.ViewEvent(nil), h.events...)
}

func (h *History) Capacity() int { return h.capacity }
