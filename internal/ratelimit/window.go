package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Window allows at most limit attempts per key within a rolling window.
// Only allowed attempts count against the window; a rejected attempt does
// not push the reset time further out.
type Window struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	keys *lru.Cache[string, []time.Time]
}

// NewWindow builds a limiter over at most maxKeys tracked keys. Keys evicted
// by the LRU simply start a fresh window on their next attempt.
func NewWindow(limit int, window time.Duration, maxKeys int) (*Window, error) {
	keys, err := lru.New[string, []time.Time](maxKeys)
	if err != nil {
		return nil, err
	}
	return &Window{
		limit:  limit,
		window: window,
		now:    time.Now,
		keys:   keys,
	}, nil
}

// CanAttempt records and allows the attempt when fewer than limit attempts
// happened for key in the last window, and rejects it otherwise.
func (w *Window) CanAttempt(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.window)

	attempts, _ := w.keys.Get(key)
	live := attempts[:0]
	for _, t := range attempts {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}

	if len(live) >= w.limit {
		w.keys.Add(key, live)
		return false
	}

	w.keys.Add(key, append(live, now))
	return true
}

// Remaining reports how many attempts key has left in the current window.
func (w *Window) Remaining(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.window)
	attempts, _ := w.keys.Get(key)
	live := 0
	for _, t := range attempts {
		if t.After(cutoff) {
			live++
		}
	}
	if live >= w.limit {
		return 0
	}
	return w.limit - live
}
