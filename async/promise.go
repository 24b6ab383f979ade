// Package async implements a simple Promise API, used to hand completion
// notifications across the save pipeline: offline-queued transport operations
// resolve a Promise for their original caller, and coalesced flush triggers
// wait on the flush already in flight.
package async

import (
	"time"
)

// Promise is a simple notification primitive for asynchronous events.
type Promise chan struct{}

// Resolve wakes any clients currently waiting on the Promise
func (s Promise) Resolve() {
	close(s)
}

// Wait synchronously blocks until the Promise is resolved.
func (s Promise) Wait() {
	<-s
}

// WaitWithPeriodicTask repeatedly invokes |task| with period |period| until
// the Promise is resolved.
func (s Promise) WaitWithPeriodicTask(period time.Duration, task func()) {
	ticker := time.NewTicker(period)

	for {
		select {
		case <-s:
			ticker.Stop()
			return
		case <-ticker.C:
			task()
		}
	}
}

// Result is a Promise which additionally carries the error outcome of the
// asynchronous operation. A queued transport operation holds a Result; its
// caller Waits on it, and the queue drain resolves it with the operation's
// terminal error (or nil).
type Result struct {
	p   Promise
	err error
}

// NewResult returns an unresolved Result.
func NewResult() *Result { return &Result{p: make(Promise)} }

// Resolve resolves the Result with |err|, waking any waiting clients.
// Resolve must be called at most once.
func (r *Result) Resolve(err error) {
	r.err = err
	r.p.Resolve()
}

// Wait blocks until the Result is resolved, and returns its error outcome.
func (r *Result) Wait() error {
	r.p.Wait()
	return r.err
}

// Done returns a channel which selects when the Result has resolved.
func (r *Result) Done() <-chan struct{} { return r.p }

// Err returns the error outcome. It may be read only after Done selects.
func (r *Result) Err() error { return r.err }
