package state

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"go.zomroad.dev/save/syncer"
)

// EventKind enumerates the notifications a Store emits.
type EventKind int

const (
	// SaveCompleted: a flush persisted successfully.
	SaveCompleted EventKind = iota
	// SaveError: a flush failed; the in-memory document remains
	// authoritative and a later trigger retries.
	SaveError
	// SyncCompleted: a reconciliation finished (any non-conflict outcome).
	SyncCompleted
	// SyncError: a reconciliation failed.
	SyncError
	// ConflictDetected: a reconciliation requires manual resolution.
	ConflictDetected
	// RecoveredFromBackup: the primary slot was unusable and a backup
	// generation was restored.
	RecoveredFromBackup
	// ResetPerformed: the document was replaced with schema defaults.
	ResetPerformed
)

// String names the EventKind for logging.
func (k EventKind) String() string {
	switch k {
	case SaveCompleted:
		return "saveCompleted"
	case SaveError:
		return "saveError"
	case SyncCompleted:
		return "syncCompleted"
	case SyncError:
		return "syncError"
	case ConflictDetected:
		return "conflictDetected"
	case RecoveredFromBackup:
		return "recoveredFromBackup"
	case ResetPerformed:
		return "resetPerformed"
	default:
		return fmt.Sprintf("invalid-event-%d", int(k))
	}
}

// Event is one notification of the Store.
type Event struct {
	Kind EventKind
	// SavedAt is the document's logical timestamp when the Event fired.
	SavedAt int64
	// Err is set for SaveError and SyncError.
	Err error
	// Outcome is set for SyncCompleted.
	Outcome syncer.Outcome
	// Conflict is set for ConflictDetected.
	Conflict *syncer.ConflictRecord
}

// Handler observes Store events. A Handler which panics or misbehaves is
// isolated: its failure is logged and never reaches sibling handlers.
type Handler func(Event)

// Subscribe registers |h| and returns its unsubscribe function. Lifecycle
// events raised before any subscriber existed (notably RecoveredFromBackup,
// raised while Open loads the document) replay to the first subscriber.
func (s *Store) Subscribe(h Handler) (unsubscribe func()) {
	s.mu.Lock()
	var id = s.nextHandlerID
	s.nextHandlerID++
	s.handlers[id] = h

	var replay = s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, ev := range replay {
		deliver(h, ev)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

// emit dispatches |ev| in registration order. Handlers run outside the
// Store lock (they may call back in), and each handler's panic is caught
// locally.
func (s *Store) emit(ev Event) {
	s.mu.Lock()
	var ids = make([]int, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var handlers = make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = s.handlers[id]
	}
	s.mu.Unlock()

	for _, h := range handlers {
		deliver(h, ev)
	}
}

// deliver invokes |h| with |ev|, catching its panic locally.
func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"event": ev.Kind,
				"panic": r,
			}).Error("event handler panicked (isolated)")
		}
	}()
	h(ev)
}
