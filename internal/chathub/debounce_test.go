package chathub_test

import (
	"sync"
	"testing"
	"time"

	"supportdesk/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushes map[string][][]string
}

func (r *flushRecorder) record(key string, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes[key] = append(r.flushes[key], ids)
}

func (r *flushRecorder) get(key string) [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.flushes[key]...)
}

func TestDebouncer_FlushesOncePerWindow(t *testing.T) {
	rec := &flushRecorder{flushes: map[string][][]string{}}
	d := chathub.NewDebouncer(20*time.Millisecond, rec.record)
	defer d.Stop()

	d.Add("a", "s-1")
	d.Add("a", "s-1")
	d.Add("a", "s-2")
	d.Add("b", "s-3")

	assert.Eventually(t, func() bool { return len(rec.get("a")) == 1 && len(rec.get("b")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"s-1", "s-2"}, rec.get("a")[0])
	assert.Equal(t, []string{"s-3"}, rec.get("b")[0])

	// A later burst starts a new window.
	d.Add("a", "s-9")
	assert.Eventually(t, func() bool { return len(rec.get("a")) == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncer_ForgetAndStop(t *testing.T) {
	rec := &flushRecorder{flushes: map[string][][]string{}}
	d := chathub.NewDebouncer(20*time.Millisecond, rec.record)

	d.Add("a", "s-1")
	d.Forget("a")
	d.Add("b", "s-2")
	d.Stop()
	d.Add("c", "s-3")

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.get("a"))
	assert.Empty(t, rec.get("b"))
	assert.Empty(t, rec.get("c"))
}
