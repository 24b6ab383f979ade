// Package state implements the StateStore: the owner of the canonical
// in-memory save document. It applies typed mutations, drives flushes
// through local persistence and the backup ring, reconciles against the
// remote copy, and fans out lifecycle events to subscribers.
//
// There is no ambient global store: the application root constructs one
// Store and injects it into every game-event producer.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/document"
	"go.zomroad.dev/save/scheduler"
	"go.zomroad.dev/save/store"
	"go.zomroad.dev/save/syncer"
	"go.zomroad.dev/save/transport"
)

// Store owns the canonical in-memory Document. It's safe for concurrent
// use: mutations arrive from gameplay goroutines while flushes and
// reconciliations fire from scheduler timers. IO runs outside the lock,
// against a deep copy of the document.
type Store struct {
	mu    sync.Mutex
	doc   document.Document
	dirty bool

	// lastPersisted is the previously flushed generation. It is
	// snapshotted into the backup ring before each flush overwrites the
	// primary slot, so one recoverable generation always survives a crash
	// mid-write.
	lastPersisted *document.Document

	persistence *store.Persistence
	ring        *store.BackupRing
	engine      *syncer.Engine
	transport   *transport.Transport

	handlers      map[int]Handler
	nextHandlerID int

	// pending holds lifecycle events raised before any subscriber existed
	// (Open runs before callers can Subscribe). The first subscriber
	// receives them on registration.
	pending []Event

	flushing    bool
	syncBusy    bool
	pendingSync bool

	autosave *scheduler.AutoSave
	syncLoop scheduler.Task

	// clock yields logical time; swapped for determinism in tests.
	clock func() int64
}

// Open loads (or initializes) a Store from |persistence| and |ring|.
// |engine| and |tr| are optional: a Store without them persists locally
// only. Load order is: primary slot (repairing a structurally sound but
// invalid document), then backup recovery, then schema defaults.
func Open(persistence *store.Persistence, ring *store.BackupRing, engine *syncer.Engine, tr *transport.Transport) *Store {
	var s = &Store{
		persistence: persistence,
		ring:        ring,
		engine:      engine,
		transport:   tr,
		handlers:    map[int]Handler{},
		clock:       func() int64 { return time.Now().UnixMilli() },
	}

	// Adoption always runs through Copy: a persisted document whose JSON
	// omitted map-valued fields decodes with nil maps, and Copy
	// materializes them before any mutation writes into one.
	if doc, repaired, ok := persistence.ReadRepaired(); ok {
		s.doc = doc.Copy()
		if repaired {
			// The damaged bytes are still on disk; re-persist.
			s.dirty = true
		} else {
			// Only a generation actually read from the primary slot can
			// be the outgoing generation of the first flush.
			var cp = doc.Copy()
			s.lastPersisted = &cp
		}
	} else if doc, err := ring.Recover(); err == nil {
		s.doc = doc.Copy()
		s.dirty = true // Re-persist the recovered generation as primary.
		s.pending = append(s.pending, Event{Kind: RecoveredFromBackup, SavedAt: doc.SavedAt})
	} else {
		log.Info("no recoverable save; starting from defaults")
		s.doc = document.New()
		s.dirty = true
	}
	return s
}

// Document returns a deep copy of the current document: callers can never
// alias and mutate internal state.
func (s *Store) Document() document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Copy()
}

// Dirty returns whether unflushed mutations exist.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Apply merges |m| into the document, advances its logical timestamp, and
// marks it dirty. A rejected mutation leaves the document unchanged.
func (s *Store) Apply(m document.Mutation) error {
	s.mu.Lock()
	if err := m.ApplyTo(&s.doc); err != nil {
		s.mu.Unlock()
		return err
	}

	// Logical time advances strictly, even under a stalled wall clock.
	if now := s.clock(); now > s.doc.SavedAt {
		s.doc.SavedAt = now
	} else {
		s.doc.SavedAt++
	}
	s.doc.SavedWall = time.Now().UTC()
	s.dirty = true
	s.mu.Unlock()

	if s.autosave != nil {
		s.autosave.Touch()
	}
	return nil
}

// Flush persists the document: the outgoing generation is snapshotted to
// the backup ring, then the primary slot is overwritten. The dirty flag
// clears only if no mutation raced the write; on failure the in-memory
// document remains authoritative, to be retried by the next trigger.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.flushing || !s.dirty {
		s.mu.Unlock()
		return nil // Nothing to do, or an in-flight flush covers it.
	}
	s.flushing = true
	var doc = s.doc.Copy()
	var prev = s.lastPersisted
	s.mu.Unlock()

	if prev != nil && prev.SavedAt < doc.SavedAt {
		if err := s.ring.Snapshot(*prev); err != nil {
			// Degraded but not fatal: the flush itself may still succeed.
			log.WithField("err", err).Warn("failed to snapshot outgoing generation")
		}
	}
	var err = s.persistence.Write(doc)

	s.mu.Lock()
	s.flushing = false
	if err == nil {
		s.lastPersisted = &doc
		if s.doc.SavedAt == doc.SavedAt {
			s.dirty = false
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.emit(Event{Kind: SaveError, SavedAt: doc.SavedAt, Err: err})
		return err
	}
	s.emit(Event{Kind: SaveCompleted, SavedAt: doc.SavedAt})
	return nil
}

// Sync reconciles against the remote copy. Downloaded or merged documents
// replace the local one and are flushed immediately. A reconciliation
// already in flight records the trigger and runs one follow-up Sync when it
// completes.
func (s *Store) Sync(ctx context.Context) error {
	if s.engine == nil {
		return errors.New("no sync engine configured")
	}

	s.mu.Lock()
	if s.syncBusy {
		s.pendingSync = true
		s.mu.Unlock()
		return nil
	}
	s.syncBusy = true
	var local = s.doc.Copy()
	s.mu.Unlock()

	var res, err = s.engine.Reconcile(ctx, local)

	s.mu.Lock()
	s.syncBusy = false
	var rerun = s.pendingSync
	s.pendingSync = false

	var adopted bool
	if err == nil {
		switch res.Outcome {
		case syncer.Downloaded, syncer.Merged:
			// The result applies to the snapshot it reconciled against.
			// Logical time advances strictly, so an unchanged SavedAt
			// means no mutation raced the reconciliation; a raced
			// mutation supersedes the result, and the next sync interval
			// reconciles again. An unchanged document adopts even an
			// equal-timestamp winner, or a tie-break would never settle.
			if s.doc.SavedAt == local.SavedAt {
				s.doc = res.Document.Copy()
				s.dirty = true
				adopted = true
			}
		}
	}
	var savedAt = s.doc.SavedAt
	s.mu.Unlock()

	if err != nil {
		s.emit(Event{Kind: SyncError, SavedAt: savedAt, Err: err})
		return err
	}

	if adopted {
		if err = s.Flush(); err != nil {
			// Already emitted as SaveError; the document is adopted
			// regardless and re-flushes on the next trigger.
			log.WithField("err", err).Warn("failed to persist synced document")
		}
	}
	if res.Outcome == syncer.ConflictPending {
		s.emit(Event{Kind: ConflictDetected, SavedAt: savedAt, Conflict: res.Conflict})
	} else {
		s.emit(Event{Kind: SyncCompleted, SavedAt: savedAt, Outcome: res.Outcome})
	}

	if rerun {
		return s.Sync(ctx)
	}
	return nil
}

// ResolveConflict completes a manual conflict: |winner| is uploaded, adopted
// locally, and flushed.
func (s *Store) ResolveConflict(ctx context.Context, id string, winner document.Document) error {
	if s.engine == nil {
		return errors.New("no sync engine configured")
	}
	var res, err = s.engine.Resolve(ctx, id, winner)
	if err != nil {
		s.emit(Event{Kind: SyncError, SavedAt: winner.SavedAt, Err: err})
		return err
	}

	s.mu.Lock()
	s.doc = res.Document.Copy()
	s.dirty = true
	var savedAt = s.doc.SavedAt
	s.mu.Unlock()

	if err = s.Flush(); err != nil {
		log.WithField("err", err).Warn("failed to persist resolved document")
	}
	s.emit(Event{Kind: SyncCompleted, SavedAt: savedAt, Outcome: res.Outcome})
	return nil
}

// Conflicts returns unresolved conflict records awaiting manual resolution.
func (s *Store) Conflicts() []*syncer.ConflictRecord {
	if s.engine == nil {
		return nil
	}
	return s.engine.Conflicts()
}

// ForceSave triggers an immediate single-flight flush.
func (s *Store) ForceSave() {
	if s.autosave != nil {
		s.autosave.Flush()
		return
	}
	if err := s.Flush(); err != nil {
		log.WithField("err", err).Warn("forced save failed")
	}
}

// ForceSync triggers an immediate reconciliation.
func (s *Store) ForceSync(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		log.WithField("err", err).Warn("forced sync failed")
	}
}

// Reset replaces the document with schema defaults, clears the backup ring
// and any offline-queued operations, and persists the fresh document.
func (s *Store) Reset() error {
	s.mu.Lock()
	var prior = s.doc.SavedAt
	s.doc = document.New()

	// The fresh document still advances logical time past every generation
	// this device has seen, so the reset wins a newest-first reconciliation.
	if now := s.clock(); now > prior {
		s.doc.SavedAt = now
	} else {
		s.doc.SavedAt = prior + 1
	}
	s.dirty = true
	s.lastPersisted = nil
	var savedAt = s.doc.SavedAt
	s.mu.Unlock()

	if err := s.ring.Reset(); err != nil {
		log.WithField("err", err).Warn("failed to reset backup ring")
	}
	if s.transport != nil {
		s.transport.Reset()
	}

	var err = s.Flush()
	s.emit(Event{Kind: ResetPerformed, SavedAt: savedAt})
	return err
}

// StartAutoSave begins the flush cadence: a periodic flush every
// |interval|, and a debounced flush |quiet| after each mutation burst.
func (s *Store) StartAutoSave(interval, quiet time.Duration) {
	if s.autosave != nil {
		s.autosave.Stop()
	}
	s.autosave = scheduler.NewAutoSave(func() error { return s.Flush() }, interval, quiet)
}

// StartSyncLoop begins periodic reconciliation every |period|.
func (s *Store) StartSyncLoop(ctx context.Context, period time.Duration) {
	if s.syncLoop != nil {
		s.syncLoop.Cancel()
	}
	s.syncLoop = scheduler.Repeat(period, func() { s.ForceSync(ctx) })
}

// Stop cancels the auto-save and sync loops. In-flight work completes.
func (s *Store) Stop() {
	if s.autosave != nil {
		s.autosave.Stop()
		s.autosave = nil
	}
	if s.syncLoop != nil {
		s.syncLoop.Cancel()
		s.syncLoop = nil
	}
}
