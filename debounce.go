package cellscope

import (
	"sort"
	"sync"
	"time"
)

// Debouncer batches change signals. Every Trigger restarts the quiet
// period; when it expires the handler receives the distinct keys seen since
// the last batch, sorted.
type Debouncer struct {
	delay   time.Duration
	handler func(keys []string)

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]bool
	stopped bool
}

// NewDebouncer returns a Debouncer calling handler after delay of quiet.
func NewDebouncer(delay time.Duration, handler func(keys []string)) *Debouncer {
	return &Debouncer{delay: delay, handler: handler, pending: map[string]bool{}}
}

// Trigger records a change of key and restarts the quiet period.
func (d *Debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending[key] = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.Flush)
}

// Flush delivers the pending keys now, if there are any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	d.pending = map[string]bool{}
	d.mu.Unlock()

	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)
	d.handler(keys)
}

// Stop cancels the pending batch. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = map[string]bool{}
}
