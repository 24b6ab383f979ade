package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func init() {
	// Collapse backoff waits so retry tests run instantly.
	timeAfter = func(time.Duration) <-chan time.Time {
		var ch = make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
}

// testServer records requests and plays back a scripted status per path hit.
type testServer struct {
	mu     sync.Mutex
	hits   []string
	script map[string][]int // Path => statuses, consumed in order; empty => 200.
	*httptest.Server
}

func newTestServer() *testServer {
	var ts = &testServer{script: make(map[string][]int)}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.hits = append(ts.hits, r.Method+" "+r.URL.Path)
		var code = http.StatusOK
		if s := ts.script[r.URL.Path]; len(s) != 0 {
			code, ts.script[r.URL.Path] = s[0], s[1:]
		}
		ts.mu.Unlock()

		w.WriteHeader(code)
		if code == http.StatusOK {
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	return ts
}

func (ts *testServer) hitCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.hits)
}

func newTestTransport(t *testing.T, ts *testServer) *Transport {
	var client, err = NewClient(Config{
		Endpoint:          ts.URL,
		AttemptTimeout:    time.Second,
		MaxAttempts:       3,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 2,
	}, "")
	require.NoError(t, err)
	return NewTransport(client)
}

func TestConfigValidationCases(t *testing.T) {
	require.Regexp(t, "missing endpoint", Config{}.Validate())
	require.Regexp(t, "invalid endpoint", Config{Endpoint: "ftp://x"}.Validate())
	require.Regexp(t, "invalid max attempts", Config{Endpoint: "http://x", MaxAttempts: 0}.Validate())
	require.Regexp(t, "invalid backoff multiplier",
		Config{Endpoint: "http://x", MaxAttempts: 3, BackoffMultiplier: 0.5}.Validate())
	require.NoError(t, Config{Endpoint: "http://x", MaxAttempts: 3, BackoffMultiplier: 2}.Validate())
}

func TestRetryCeilingOnServerError(t *testing.T) {
	var ts = newTestServer()
	defer ts.Close()
	ts.script["/v1/save"] = []int{500, 500, 500, 500}

	var tr = newTestTransport(t, ts)
	var _, err = tr.Request(context.Background(), Op{Verb: "PUT", Path: "/v1/save"}).Wait()

	// Exactly MaxAttempts attempts, then the typed failure surfaces.
	require.Equal(t, ErrServer, errors.Cause(err))
	require.Equal(t, 3, ts.hitCount())
}

func TestRetryRecoversMidway(t *testing.T) {
	var ts = newTestServer()
	defer ts.Close()
	ts.script["/v1/save"] = []int{500, 429} // Then 200.

	var tr = newTestTransport(t, ts)
	var resp, err = tr.Request(context.Background(), Op{Verb: "PUT", Path: "/v1/save"}).Wait()
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(resp))
	require.Equal(t, 3, ts.hitCount())
}

func TestNonRetryableSurfacesImmediately(t *testing.T) {
	var ts = newTestServer()
	defer ts.Close()

	for _, tc := range []struct {
		status int
		err    error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
	} {
		var before = ts.hitCount()
		ts.script["/v1/save"] = []int{tc.status}

		var tr = newTestTransport(t, ts)
		var _, err = tr.Request(context.Background(), Op{Verb: "GET", Path: "/v1/save"}).Wait()
		require.Equal(t, tc.err, errors.Cause(err))

		// Exactly one attempt.
		require.Equal(t, before+1, ts.hitCount())
	}
}

func TestOfflineReplayOrder(t *testing.T) {
	var ts = newTestServer()
	defer ts.Close()

	var tr = newTestTransport(t, ts)
	tr.markOffline()

	// Mutating operations queue in order; a read fails fast.
	var p1 = tr.Request(context.Background(), Op{Verb: "PUT", Path: "/v1/op1", Mutating: true})
	var p2 = tr.Request(context.Background(), Op{Verb: "PUT", Path: "/v1/op2", Mutating: true})
	var p3 = tr.Request(context.Background(), Op{Verb: "PUT", Path: "/v1/op3", Mutating: true})

	var _, err = tr.Request(context.Background(), Op{Verb: "GET", Path: "/v1/read"}).Wait()
	require.IsType(t, &NetworkError{}, errors.Cause(err))
	require.Equal(t, 3, tr.QueueDepth())
	require.Zero(t, ts.hitCount())

	tr.Reconnect(context.Background())

	for _, p := range []*Pending{p1, p2, p3} {
		var _, err = p.Wait()
		require.NoError(t, err)
	}
	require.Equal(t, []string{"PUT /v1/op1", "PUT /v1/op2", "PUT /v1/op3"}, ts.hits)
	require.Zero(t, tr.QueueDepth())
	require.False(t, tr.Offline())
}

func TestPermanentQueueFailureRejectsOnlyItsCaller(t *testing.T) {
	var ts = newTestServer()
	defer ts.Close()
	ts.script["/v1/op1"] = []int{403}

	var tr = newTestTransport(t, ts)
	tr.markOffline()

	var p1 = tr.Request(context.Background(), Op{Verb: "PUT", Path: "/v1/op1", Mutating: true})
	var p2 = tr.Request(context.Background(), Op{Verb: "PUT", Path: "/v1/op2", Mutating: true})

	tr.Reconnect(context.Background())

	var _, err = p1.Wait()
	require.Equal(t, ErrForbidden, errors.Cause(err))
	_, err = p2.Wait()
	require.NoError(t, err)
}

func TestNetworkFailureFlipsOfflineAndQueues(t *testing.T) {
	var ts = newTestServer()
	var tr = newTestTransport(t, ts)
	ts.Close() // Connection refused from here on.

	var p = tr.Request(context.Background(), Op{Verb: "PUT", Path: "/v1/save", Mutating: true})
	require.True(t, tr.Offline())
	require.Equal(t, 1, tr.QueueDepth())

	select {
	case <-p.Done():
		t.Fatal("queued operation resolved while offline")
	default:
	}

	// Reset discards the queue, resolving its entries with ErrReset.
	tr.Reset()
	_, err := p.Wait()
	require.Equal(t, ErrReset, errors.Cause(err))
}

func TestSessionToken(t *testing.T) {
	var token, err = SessionToken([]byte("install-secret"), "p-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Round-trip through a client: the server sees the bearer token.
	var seen string
	var srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		Endpoint: srv.URL, MaxAttempts: 3, BackoffMultiplier: 2,
	}, token)
	require.NoError(t, err)

	_, err = client.attempt(context.Background(), Op{Verb: "GET", Path: "/v1/save"})
	require.NoError(t, err)
	require.Equal(t, "Bearer "+token, seen)
}
