package transport

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/async"
	"go.zomroad.dev/save/metrics"
)

// ErrReset is resolved into queued operations discarded by an explicit Reset.
var ErrReset = errors.New("offline queue reset")

// Pending is the handle of a submitted Op. Operations executed online
// resolve before Request returns; operations queued offline resolve when
// the queue drains (or the queue is reset).
type Pending struct {
	Op       Op
	response json.RawMessage
	result   *async.Result
}

// Wait blocks until the operation completes, returning its response or error.
func (p *Pending) Wait() (json.RawMessage, error) {
	var err = p.result.Wait()
	return p.response, err
}

// Done returns a channel which selects when the operation has completed.
func (p *Pending) Done() <-chan struct{} { return p.result.Done() }

// Transport is the resilient execution layer over Client: bounded retries
// with exponential backoff while online, and an unbounded FIFO replay queue
// while offline. Queued operations persist for the process lifetime and are
// discarded only by an explicit Reset.
type Transport struct {
	client *Client

	mu      sync.Mutex
	offline bool
	queue   []*Pending
}

// NewTransport returns a Transport over |client|, initially online.
func NewTransport(client *Client) *Transport {
	return &Transport{client: client}
}

// Offline returns whether the Transport currently considers itself offline.
func (t *Transport) Offline() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offline
}

// QueueDepth returns the current depth of the offline queue.
func (t *Transport) QueueDepth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Request submits |op|. Online, it executes through the retry path and the
// returned Pending is already resolved. Offline, a mutating |op| is enqueued
// for replay, while a read resolves immediately with a NetworkError.
func (t *Transport) Request(ctx context.Context, op Op) *Pending {
	var p = &Pending{Op: op, result: async.NewResult()}

	t.mu.Lock()
	if t.offline {
		if op.Mutating {
			t.queue = append(t.queue, p)
			metrics.OfflineQueueDepth.Set(float64(len(t.queue)))
			t.mu.Unlock()

			log.WithFields(log.Fields{
				"verb": op.Verb,
				"path": op.Path,
			}).Info("offline; queued mutating operation")
			return p
		}
		t.mu.Unlock()
		p.result.Resolve(&NetworkError{Err: errors.New("offline")})
		return p
	}
	t.mu.Unlock()

	var resp, err = t.execute(ctx, op)
	if err != nil {
		if _, isNetwork := errors.Cause(err).(*NetworkError); isNetwork {
			t.markOffline()
			if op.Mutating {
				// Queue rather than reject: the op replays on reconnect.
				t.mu.Lock()
				t.queue = append(t.queue, p)
				metrics.OfflineQueueDepth.Set(float64(len(t.queue)))
				t.mu.Unlock()
				return p
			}
		}
	}
	p.response = resp
	p.result.Resolve(err)
	return p
}

// Reconnect marks the Transport online and drains the offline queue in
// strict FIFO order through the retry path. A queued entry failing with a
// non-retryable error (or exhausting retries on a server failure) rejects
// only its own caller; a network failure stops the drain, leaving that
// entry and the remainder queued.
func (t *Transport) Reconnect(ctx context.Context) {
	t.mu.Lock()
	t.offline = false
	t.mu.Unlock()

	for {
		t.mu.Lock()
		if t.offline || len(t.queue) == 0 {
			t.mu.Unlock()
			return
		}
		var p = t.queue[0]
		t.mu.Unlock()

		var resp, err = t.execute(ctx, p.Op)
		if err != nil {
			if _, isNetwork := errors.Cause(err).(*NetworkError); isNetwork {
				// Connectivity lost again. The entry stays queued; it is
				// never silently dropped while the process lives.
				t.markOffline()
				return
			}
			metrics.OfflineReplayedTotal.WithLabelValues(metrics.Fail).Inc()
			log.WithFields(log.Fields{
				"verb": p.Op.Verb,
				"path": p.Op.Path,
				"err":  err,
			}).Warn("queued operation permanently failed")
		} else {
			metrics.OfflineReplayedTotal.WithLabelValues(metrics.Ok).Inc()
		}

		t.mu.Lock()
		t.queue = t.queue[1:]
		metrics.OfflineQueueDepth.Set(float64(len(t.queue)))
		t.mu.Unlock()

		p.response = resp
		p.result.Resolve(err)
	}
}

// Reset discards the offline queue, resolving every entry with ErrReset.
func (t *Transport) Reset() {
	t.mu.Lock()
	var dropped = t.queue
	t.queue = nil
	metrics.OfflineQueueDepth.Set(0)
	t.mu.Unlock()

	for _, p := range dropped {
		p.result.Resolve(ErrReset)
	}
}

func (t *Transport) markOffline() {
	t.mu.Lock()
	t.offline = true
	t.mu.Unlock()
}

// execute runs |op| with up to MaxAttempts attempts, backing off between
// retryable failures. Non-retryable failures surface after exactly one
// attempt.
func (t *Transport) execute(ctx context.Context, op Op) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt != t.client.cfg.MaxAttempts; attempt++ {
		if attempt != 0 {
			metrics.TransportRetriesTotal.Inc()
			select {
			case <-ctx.Done():
				return nil, &NetworkError{Err: ctx.Err()}
			case <-timeAfter(t.backoff(attempt - 1)):
			}
		}

		var resp, err = t.client.attempt(ctx, op)
		if err == nil {
			return resp, nil
		} else if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err

		log.WithFields(log.Fields{
			"verb":    op.Verb,
			"path":    op.Path,
			"err":     err,
			"attempt": attempt,
		}).Warn("request failure (will retry)")
	}
	return nil, lastErr
}

func (t *Transport) backoff(attempt int) time.Duration {
	var d = float64(t.client.cfg.BackoffBase) *
		math.Pow(t.client.cfg.BackoffMultiplier, float64(attempt))
	return time.Duration(d)
}

// timeAfter is swapped for instant backoff in tests.
var timeAfter = time.After
