package engine

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultFlushDelay is the trailing quiet period before an in-progress
// edit is persisted without leaving edit mode.
const DefaultFlushDelay = time.Second

// FlushScheduler schedules the trailing flush of a buffered edit.
// Production uses DebouncedFlush; tests drive the flush by hand.
type FlushScheduler interface {
	// Schedule (re)arms the trailing flush with the given callback.
	// Each call restarts the quiet period and replaces the callback.
	Schedule(fn func())

	// Cancel disarms any pending flush. A callback that already started
	// the quiet period but has not fired yet will not fire.
	Cancel()
}

// DebouncedFlush is a cancel-aware FlushScheduler on a trailing
// debounce. The debouncer itself has no cancel, so cancellation is a
// generation check: Cancel bumps the generation and a fired callback
// from an older generation does nothing.
type DebouncedFlush struct {
	mu        sync.Mutex
	gen       uint64
	debounced func(func())
}

// NewDebouncedFlush returns a scheduler with the given quiet period.
// Non-positive durations get DefaultFlushDelay.
func NewDebouncedFlush(d time.Duration) *DebouncedFlush {
	if d <= 0 {
		d = DefaultFlushDelay
	}
	return &DebouncedFlush{debounced: debounce.New(d)}
}

func (f *DebouncedFlush) Schedule(fn func()) {
	f.mu.Lock()
	gen := f.gen
	f.mu.Unlock()

	f.debounced(func() {
		f.mu.Lock()
		stale := gen != f.gen
		f.mu.Unlock()
		if !stale {
			fn()
		}
	})
}

func (f *DebouncedFlush) Cancel() {
	f.mu.Lock()
	f.gen++
	f.mu.Unlock()
}
