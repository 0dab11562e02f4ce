package queue

import (
	"sync"
	"time"
)

// slidingWindow caps the number of task starts inside a trailing time
// window. Timestamps act as a ring buffer: expired entries are evicted on
// every call, so the count is always a true sliding count rather than a
// fixed-bucket approximation.
type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	starts []time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{limit: limit, window: window}
}

// Allow reports whether a new start fits in the window at now. It does not
// record anything; pair it with Record once the start actually happens.
func (w *slidingWindow) Allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	return len(w.starts) < w.limit
}

// Record counts a task start at now.
func (w *slidingWindow) Record(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	w.starts = append(w.starts, now)
}

// NextAllowed returns the earliest instant a new start would be admitted.
// When the window has room it returns now.
func (w *slidingWindow) NextAllowed(now time.Time) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	if len(w.starts) < w.limit {
		return now
	}
	// The oldest counted start ages out of the window first.
	return w.starts[len(w.starts)-w.limit].Add(w.window)
}

func (w *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.starts) && !w.starts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.starts = append(w.starts[:0], w.starts[i:]...)
	}
}
