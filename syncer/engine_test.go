package syncer

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"go.zomroad.dev/save/document"
	"go.zomroad.dev/save/transport"
)

// fakeRemote is an in-memory RemoteStore with scriptable failures.
type fakeRemote struct {
	doc      *document.Document
	fetchErr error
	putErr   error
	puts     int
}

func (r *fakeRemote) Fetch(context.Context) (*document.Document, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.doc, nil
}

func (r *fakeRemote) Put(_ context.Context, doc document.Document) error {
	if r.putErr != nil {
		return r.putErr
	}
	r.doc, r.puts = &doc, r.puts+1
	return nil
}

func fixture(savedAt int64, currency int64) document.Document {
	var d = document.New()
	d.Player.ID = "p-1"
	d.Session.ID = "s-1"
	d.SavedAt = savedAt
	d.Player.Currency = currency
	return d
}

func TestReconcileUploadsWhenRemoteAbsent(t *testing.T) {
	var remote = &fakeRemote{}
	var e = NewEngine(remote, StrategyNewest)

	var local = fixture(100, 500)
	var res, err = e.Reconcile(context.Background(), local)
	require.NoError(t, err)
	require.Equal(t, Uploaded, res.Outcome)
	require.Equal(t, int64(100), remote.doc.SavedAt)
}

func TestReconcileUploadsNewerLocal(t *testing.T) {
	var remoteDoc = fixture(50, 100)
	var remote = &fakeRemote{doc: &remoteDoc}
	var e = NewEngine(remote, StrategyNewest)

	var res, err = e.Reconcile(context.Background(), fixture(100, 500))
	require.NoError(t, err)
	require.Equal(t, Uploaded, res.Outcome)
	require.Equal(t, int64(500), remote.doc.Player.Currency)
}

func TestReconcileDownloadsNewerRemote(t *testing.T) {
	// Local {savedAt=100, currency=500}, remote {savedAt=200, currency=800}:
	// reconcile downloads, and the resulting local document carries the
	// remote's currency and timestamp.
	var remoteDoc = fixture(200, 800)
	var remote = &fakeRemote{doc: &remoteDoc}
	var e = NewEngine(remote, StrategyNewest)

	var res, err = e.Reconcile(context.Background(), fixture(100, 500))
	require.NoError(t, err)
	require.Equal(t, Downloaded, res.Outcome)
	require.Equal(t, int64(800), res.Document.Player.Currency)
	require.Equal(t, int64(200), res.Document.SavedAt)
	require.Zero(t, remote.puts)
}

func TestReconcileNoopOnIdenticalDocuments(t *testing.T) {
	var doc = fixture(100, 500)
	var remote = &fakeRemote{doc: &doc}
	var e = NewEngine(remote, StrategyNewest)

	var res, err = e.Reconcile(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, Noop, res.Outcome)
	require.Zero(t, remote.puts)
}

func TestConflictNewestIsDeterministic(t *testing.T) {
	var a = fixture(100, 500)
	var b = fixture(100, 800) // Same timestamp, different content.

	var expectLocalWins = document.SumOf(b).Less(document.SumOf(a))

	// The same (local, remote) pair resolves identically on every call.
	for i := 0; i != 5; i++ {
		var remoteDoc = b
		var remote = &fakeRemote{doc: &remoteDoc}
		var e = NewEngine(remote, StrategyNewest)

		var res, err = e.Reconcile(context.Background(), a)
		require.NoError(t, err)

		if expectLocalWins {
			require.Equal(t, Uploaded, res.Outcome)
			require.Equal(t, document.SumOf(a), document.SumOf(res.Document))
		} else {
			require.Equal(t, Downloaded, res.Outcome)
			require.Equal(t, document.SumOf(b), document.SumOf(res.Document))
		}
	}

	// And the mirrored pair resolves to the same winner.
	var remoteDoc = a
	var remote = &fakeRemote{doc: &remoteDoc}
	var res, err = NewEngine(remote, StrategyNewest).Reconcile(context.Background(), b)
	require.NoError(t, err)
	if expectLocalWins {
		require.Equal(t, Downloaded, res.Outcome) // |a| still wins.
		require.Equal(t, document.SumOf(a), document.SumOf(res.Document))
	} else {
		require.Equal(t, Uploaded, res.Outcome)
		require.Equal(t, document.SumOf(b), document.SumOf(res.Document))
	}
}

func TestConflictMergeStrategy(t *testing.T) {
	var local = fixture(100, 500)
	local.Statistics.TotalZombiesKilled = 70

	var remoteDoc = fixture(100, 800)
	remoteDoc.Statistics.TotalZombiesKilled = 120

	var remote = &fakeRemote{doc: &remoteDoc}
	var e = NewEngine(remote, StrategyMerge)

	var res, err = e.Reconcile(context.Background(), local)
	require.NoError(t, err)
	require.Equal(t, Merged, res.Outcome)
	require.Equal(t, int64(120), res.Document.Statistics.TotalZombiesKilled)
	require.Equal(t, int64(101), res.Document.SavedAt) // Advanced past both.
	require.Equal(t, 1, remote.puts)
}

func TestConflictManualStrategy(t *testing.T) {
	var local = fixture(100, 500)
	var remoteDoc = fixture(100, 800)
	var remote = &fakeRemote{doc: &remoteDoc}
	var e = NewEngine(remote, StrategyManual)

	var res, err = e.Reconcile(context.Background(), local)
	require.NoError(t, err)
	require.Equal(t, ConflictPending, res.Outcome)
	require.NotNil(t, res.Conflict)
	require.Len(t, e.Conflicts(), 1)
	require.Zero(t, remote.puts)

	// External resolution picks the remote side; its timestamp advances so
	// the resolution supersedes both documents.
	var record = res.Conflict
	res, err = e.Resolve(context.Background(), record.ID, record.Remote)
	require.NoError(t, err)
	require.Equal(t, int64(101), res.Document.SavedAt)
	require.Equal(t, 1, remote.puts)
	require.Empty(t, e.Conflicts())

	// Unknown or already-resolved conflicts are rejected.
	_, err = e.Resolve(context.Background(), record.ID, record.Remote)
	require.Error(t, err)
	_, err = e.Resolve(context.Background(), "nope", local)
	require.Regexp(t, "no such conflict", err)
}

func TestReconcileSchemaVersionFatal(t *testing.T) {
	var remoteDoc = fixture(200, 800)
	remoteDoc.SchemaVersion = document.SchemaVersion + 1
	var remote = &fakeRemote{doc: &remoteDoc}

	var _, err = NewEngine(remote, StrategyMerge).Reconcile(context.Background(), fixture(100, 500))
	require.Equal(t, ErrSchemaVersion, errors.Cause(err))
}

func TestReconcileConnectivityFailureIsRetryable(t *testing.T) {
	var remote = &fakeRemote{fetchErr: &transport.NetworkError{Err: errors.New("unreachable")}}
	var e = NewEngine(remote, StrategyNewest)

	var _, err = e.Reconcile(context.Background(), fixture(100, 500))
	require.Error(t, err)
	require.True(t, transport.IsRetryable(err))
}

func TestReconcileBusyFlag(t *testing.T) {
	var e = NewEngine(&fakeRemote{}, StrategyNewest)
	e.syncing = true

	var _, err = e.Reconcile(context.Background(), fixture(1, 0))
	require.Equal(t, ErrSyncInFlight, err)
}
