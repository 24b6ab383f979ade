// Package scheduler provides the scheduled-task primitives of auto-save:
// single-shot delayed tasks, repeating tasks, a debouncer which coalesces
// bursts of triggers, and the single-flight flush funnel.
package scheduler

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/async"
)

// Task is a cancelable scheduled invocation.
type Task interface {
	// Cancel stops the task. Canceling a completed or canceled task is a
	// no-op.
	Cancel()
}

type delayedTask struct{ timer *time.Timer }

func (t *delayedTask) Cancel() { t.timer.Stop() }

// Delay invokes |fn| once after |d|.
func Delay(d time.Duration, fn func()) Task {
	return &delayedTask{timer: time.AfterFunc(d, fn)}
}

type repeatingTask struct {
	stop async.Promise
	once sync.Once
}

func (t *repeatingTask) Cancel() { t.once.Do(func() { t.stop.Resolve() }) }

// Repeat invokes |fn| every |d| until the Task is canceled.
func Repeat(d time.Duration, fn func()) Task {
	var t = &repeatingTask{stop: make(async.Promise)}
	go t.stop.WaitWithPeriodicTask(d, fn)
	return t
}

// Debouncer coalesces bursts of triggers: |fn| runs once, |quiet| after the
// last Poke. A Poke during the quiet period restarts it.
type Debouncer struct {
	quiet time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer returns a Debouncer of |fn| with the given quiet period.
func NewDebouncer(quiet time.Duration, fn func()) *Debouncer {
	return &Debouncer{quiet: quiet, fn: fn}
}

// Poke (re)starts the quiet period.
func (b *Debouncer) Poke() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.quiet, b.fn)
}

// Cancel stops any pending invocation.
func (b *Debouncer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// Flusher funnels flush triggers into single-flight execution: at most one
// flush runs at a time, and any number of triggers arriving during one
// in-flight flush coalesce into exactly one follow-up flush. Flush errors
// are logged and swallowed; the caller's dirty state ensures a later
// trigger retries.
type Flusher struct {
	flush func() error

	mu       sync.Mutex
	inFlight bool
	pending  bool
}

// NewFlusher returns a Flusher of |flush|.
func NewFlusher(flush func() error) *Flusher {
	return &Flusher{flush: flush}
}

// Trigger requests a flush. If one is already in flight the request is
// recorded and honored by exactly one follow-up flush.
func (f *Flusher) Trigger() {
	f.mu.Lock()
	if f.inFlight {
		f.pending = true
		f.mu.Unlock()
		return
	}
	f.inFlight = true
	f.mu.Unlock()

	for {
		if err := f.flush(); err != nil {
			log.WithField("err", err).Warn("flush failed (will retry on next trigger)")
		}

		f.mu.Lock()
		if f.pending {
			f.pending = false
			f.mu.Unlock()
			continue
		}
		f.inFlight = false
		f.mu.Unlock()
		return
	}
}

// AutoSave drives the flush cadence of a save store: a fixed-interval timer
// plus a debounced trigger which coalesces mutation bursts, both funneled
// through a single-flight Flusher.
type AutoSave struct {
	flusher  *Flusher
	interval Task
	debounce *Debouncer
}

// NewAutoSave returns a started AutoSave flushing through |flush| every
// |interval|, and |quiet| after each mutation burst.
func NewAutoSave(flush func() error, interval, quiet time.Duration) *AutoSave {
	var f = NewFlusher(flush)
	return &AutoSave{
		flusher:  f,
		interval: Repeat(interval, f.Trigger),
		debounce: NewDebouncer(quiet, f.Trigger),
	}
}

// Touch notes a mutation, scheduling a debounced flush.
func (a *AutoSave) Touch() { a.debounce.Poke() }

// Flush triggers an immediate (single-flight) flush.
func (a *AutoSave) Flush() { a.flusher.Trigger() }

// Stop cancels both triggers. An in-flight flush completes.
func (a *AutoSave) Stop() {
	a.interval.Cancel()
	a.debounce.Cancel()
}
