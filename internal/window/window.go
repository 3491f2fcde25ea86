package window

import (
	"sync"

	"github.com/obsidianstack/envwatch/internal/reading"
)

// DefaultCapacity is the history length used when none is configured.
const DefaultCapacity = 100

// Window is a fixed-capacity ring of readings in arrival order.
// When full, Append evicts exactly the oldest entry.
//
// Window is safe for concurrent use. The pipeline controller is its only
// writer; any number of goroutines may call Snapshot.
type Window struct {
	mu    sync.RWMutex
	buf   []reading.Reading
	head  int // index of the oldest entry
	count int
}

// New creates an empty Window. A capacity below 1 falls back to DefaultCapacity.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Window{buf: make([]reading.Reading, capacity)}
}

// Append adds r as the newest entry, evicting the oldest one if full.
func (w *Window) Append(r reading.Reading) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count < len(w.buf) {
		w.buf[(w.head+w.count)%len(w.buf)] = r
		w.count++
		return
	}
	w.buf[w.head] = r
	w.head = (w.head + 1) % len(w.buf)
}

// ReplaceAll swaps the whole content for batch, which must be ordered oldest
// to newest. Only the last Cap() entries of batch are kept.
func (w *Window) ReplaceAll(batch []reading.Reading) {
	if over := len(batch) - cap(w.buf); over > 0 {
		batch = batch[over:]
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	n := copy(w.buf, batch)
	clear(w.buf[n:])
	w.head = 0
	w.count = n
}

// Clear empties the window.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	clear(w.buf)
	w.head = 0
	w.count = 0
}

// Snapshot returns a copy of the content, oldest first.
// The result is never nil, so it encodes as an empty JSON array.
func (w *Window) Snapshot() []reading.Reading {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]reading.Reading, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Len returns the number of readings held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Cap returns the fixed capacity.
func (w *Window) Cap() int {
	return cap(w.buf)
}
