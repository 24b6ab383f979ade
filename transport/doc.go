// Package transport executes requests against the remote save service with
// bounded retries, exponential backoff, and an offline replay queue.
//
// Failures are classified into a small typed taxonomy. Network failures,
// server errors and rate limits are retried transparently; authentication
// and client validation failures never are, and propagate after exactly one
// attempt. While offline, mutating operations are enqueued (unbounded FIFO)
// and replayed strictly in order once connectivity resumes; a permanently
// failing queued entry rejects only its own caller.
package transport
