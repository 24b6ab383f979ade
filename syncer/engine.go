package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/document"
	"go.zomroad.dev/save/metrics"
)

// Strategy selects how a conflict (equal timestamps, differing content) is
// resolved.
type Strategy int

const (
	// StrategyNewest deterministically picks a winner by checksum
	// magnitude. Timestamps being equal, there is no "newer" side; the
	// larger checksum wins so both peers independently agree.
	StrategyNewest Strategy = iota
	// StrategyMerge combines both documents with the per-section merge
	// rules of the document package.
	StrategyMerge
	// StrategyManual records a ConflictRecord and awaits external
	// resolution through Resolve.
	StrategyManual
)

// String returns the configuration token of the Strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyNewest:
		return "newest"
	case StrategyMerge:
		return "merge"
	case StrategyManual:
		return "manual"
	default:
		return "invalid"
	}
}

// Outcome of a reconciliation.
type Outcome int

const (
	// Noop: local and remote are identical.
	Noop Outcome = iota
	// Uploaded: the local document replaced the remote.
	Uploaded
	// Downloaded: the remote document replaces the local; the caller
	// persists Result.Document.
	Downloaded
	// Merged: both sides combined; the merge replaced the remote and the
	// caller persists Result.Document.
	Merged
	// ConflictPending: a ConflictRecord awaits manual resolution.
	ConflictPending
)

// String names the Outcome for logging and metrics.
func (o Outcome) String() string {
	switch o {
	case Noop:
		return "noop"
	case Uploaded:
		return "uploaded"
	case Downloaded:
		return "downloaded"
	case Merged:
		return "merged"
	case ConflictPending:
		return "conflict-pending"
	default:
		return "invalid"
	}
}

// ConflictRecord captures an unresolved conflict for external resolution.
type ConflictRecord struct {
	ID         string
	Local      document.Document
	Remote     document.Document
	DetectedAt time.Time
	Strategy   Strategy
	Resolved   bool
}

// Result of a reconciliation. Document is the local document going forward;
// for Downloaded and Merged outcomes the caller must persist it.
type Result struct {
	Outcome  Outcome
	Document document.Document
	Conflict *ConflictRecord
}

// ErrSyncInFlight is returned when a reconciliation is already running.
// Callers defer and re-trigger rather than stacking reconciliations.
var ErrSyncInFlight = errors.New("reconciliation already in flight")

// ErrSchemaVersion marks a remote document of an incompatible (newer) schema
// version: fatal for automatic merge, surfaced unresolved for the
// application to handle (typically by prompting an update).
var ErrSchemaVersion = errors.New("incompatible remote schema version")

// Engine reconciles local vs. remote documents.
type Engine struct {
	remote   RemoteStore
	strategy Strategy

	// syncing is the re-entrancy guard; execution is cooperative, so a
	// busy flag suffices in place of a lock.
	syncing   bool
	conflicts []*ConflictRecord
}

// NewEngine returns an Engine over |remote| resolving conflicts per
// |strategy|.
func NewEngine(remote RemoteStore, strategy Strategy) *Engine {
	return &Engine{remote: remote, strategy: strategy}
}

// Conflicts returns unresolved ConflictRecords, oldest first.
func (e *Engine) Conflicts() []*ConflictRecord {
	var out []*ConflictRecord
	for _, c := range e.conflicts {
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out
}

// Reconcile compares |local| against the fetched remote document and carries
// out the decision table:
//
//	remote absent                  => upload local
//	local.SavedAt > remote.SavedAt => upload local
//	remote.SavedAt > local.SavedAt => download remote
//	equal, same checksum           => noop
//	equal, differing checksum      => conflict, per strategy
//
// Connectivity failures surface as retryable errors; the caller leaves the
// local document authoritative and retries on the next sync interval.
func (e *Engine) Reconcile(ctx context.Context, local document.Document) (Result, error) {
	if e.syncing {
		return Result{}, ErrSyncInFlight
	}
	e.syncing = true
	defer func() { e.syncing = false }()

	var remote, err = e.remote.Fetch(ctx)
	if err != nil {
		return Result{}, errors.WithMessage(err, "fetching remote document")
	}

	var res Result
	res, err = e.decide(ctx, local, remote)
	if err != nil {
		return Result{}, err
	}

	metrics.SyncTotal.WithLabelValues(res.Outcome.String()).Inc()
	log.WithFields(log.Fields{
		"outcome": res.Outcome,
		"savedAt": res.Document.SavedAt,
	}).Debug("reconciled")
	return res, nil
}

func (e *Engine) decide(ctx context.Context, local document.Document, remote *document.Document) (Result, error) {
	if remote == nil {
		return e.upload(ctx, local, Uploaded)
	}
	if remote.SchemaVersion > document.SchemaVersion {
		return Result{}, errors.WithMessagef(ErrSchemaVersion,
			"remote schema %d, local %d", remote.SchemaVersion, document.SchemaVersion)
	}

	switch {
	case local.SavedAt > remote.SavedAt:
		return e.upload(ctx, local, Uploaded)

	case remote.SavedAt > local.SavedAt:
		return Result{Outcome: Downloaded, Document: *remote}, nil
	}

	// Equal timestamps.
	var localSum, remoteSum = document.SumOf(local), document.SumOf(*remote)
	if localSum == remoteSum {
		return Result{Outcome: Noop, Document: local}, nil
	}

	metrics.SyncConflictsTotal.Inc()
	switch e.strategy {
	case StrategyNewest:
		// Deterministic tie-break: the larger checksum wins.
		if remoteSum.Less(localSum) {
			return e.upload(ctx, local, Uploaded)
		}
		return Result{Outcome: Downloaded, Document: *remote}, nil

	case StrategyMerge:
		var merged = document.Merge(local, *remote)
		return e.upload(ctx, merged, Merged)

	case StrategyManual:
		var record = &ConflictRecord{
			ID:         uuid.NewString(),
			Local:      local,
			Remote:     *remote,
			DetectedAt: time.Now().UTC(),
			Strategy:   StrategyManual,
		}
		e.conflicts = append(e.conflicts, record)
		return Result{Outcome: ConflictPending, Document: local, Conflict: record}, nil

	default:
		return Result{}, errors.Errorf("invalid strategy (%d)", e.strategy)
	}
}

// Resolve completes a manual conflict: |winner| becomes both the local and
// remote document. The winner's SavedAt is advanced past both sides so the
// resolution supersedes them everywhere.
func (e *Engine) Resolve(ctx context.Context, id string, winner document.Document) (Result, error) {
	for _, c := range e.conflicts {
		if c.ID != id {
			continue
		} else if c.Resolved {
			return Result{}, errors.Errorf("conflict %s is already resolved", id)
		}

		if winner.SavedAt <= c.Local.SavedAt || winner.SavedAt <= c.Remote.SavedAt {
			winner.SavedAt = maxInt64(c.Local.SavedAt, c.Remote.SavedAt) + 1
		}
		var res, err = e.upload(ctx, winner, Merged)
		if err != nil {
			return Result{}, err
		}
		c.Resolved = true
		return res, nil
	}
	return Result{}, errors.Errorf("no such conflict (%s)", id)
}

func (e *Engine) upload(ctx context.Context, doc document.Document, outcome Outcome) (Result, error) {
	if err := e.remote.Put(ctx, doc); err != nil {
		return Result{}, errors.WithMessage(err, "uploading document")
	}
	return Result{Outcome: outcome, Document: doc}, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
