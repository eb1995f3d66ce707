package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid file events so one editor save burst becomes
// one ingestion. Events for the same path within the window merge to the
// latest operation; a flush emits the surviving events as one batch.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]FileEvent
	timer   *time.Timer
	output  chan []FileEvent
	stopped bool
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]FileEvent),
		output:  make(chan []FileEvent, 16),
	}
}

// Add records an event, replacing any pending event for the same path,
// and (re)arms the flush timer.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending[event.Path] = event

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// Events returns the channel of flushed event batches. Closed by Stop.
func (d *Debouncer) Events() <-chan []FileEvent {
	return d.output
}

// Stop discards pending events and closes the output channel. Safe to
// call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]FileEvent, 0, len(d.pending))
	for _, event := range d.pending {
		batch = append(batch, event)
	}
	d.pending = make(map[string]FileEvent)
	d.mu.Unlock()

	d.output <- batch
}
