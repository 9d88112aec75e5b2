package chathub

import (
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces session ids per key and flushes each key at most once
// per window. The window starts with the first id of a burst, so latency is
// bounded by the window even under a steady stream of events.
type Debouncer struct {
	window time.Duration
	flush  func(key string, sessionIDs []string)

	mu      sync.Mutex
	pending map[string]map[string]struct{}
	timers  map[string]*time.Timer
	stopped bool
}

func NewDebouncer(window time.Duration, flush func(key string, sessionIDs []string)) *Debouncer {
	return &Debouncer{
		window:  window,
		flush:   flush,
		pending: make(map[string]map[string]struct{}),
		timers:  make(map[string]*time.Timer),
	}
}

// Add records sessionID for key and arms the key's timer if idle.
func (d *Debouncer) Add(key, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	set, ok := d.pending[key]
	if !ok {
		set = make(map[string]struct{})
		d.pending[key] = set
	}
	set[sessionID] = struct{}{}

	if _, armed := d.timers[key]; !armed {
		d.timers[key] = time.AfterFunc(d.window, func() { d.fire(key) })
	}
}

// Forget drops anything pending for key.
func (d *Debouncer) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	delete(d.timers, key)
	delete(d.pending, key)
}

func (d *Debouncer) fire(key string) {
	d.mu.Lock()
	set := d.pending[key]
	delete(d.pending, key)
	delete(d.timers, key)
	stopped := d.stopped
	d.mu.Unlock()

	if stopped || len(set) == 0 {
		return
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	d.flush(key, ids)
}

// Stop cancels all pending flushes.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
	d.pending = make(map[string]map[string]struct{})
}
