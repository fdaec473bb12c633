package routing

import (
	"sync"
	"sync/atomic"
)

const defaultUpdateBuffer = 64

// System provides a concurrency-safe layer for managing the routing table.
// It uses a sync.RWMutex for writes and an atomic.Pointer for lock-free view
// reads, and broadcasts a RouteChange for every committed entry.
type System struct {
	mu         sync.RWMutex
	registry   *Registry
	cachedView atomic.Pointer[TableView] // Read-optimized cache for the table view
	updates    chan RouteChange
	logger     Logger
}

// NewSystem creates and initializes a new, concurrency-safe System. The
// update buffer falls back to a sane default when non-positive. A nil logger
// is a programmer error: the caller has violated the constructor's contract.
func NewSystem(logger Logger, updateBuffer int) *System {
	if logger == nil {
		panic("routing: NewSystem requires a non-nil logger")
	}
	if updateBuffer <= 0 {
		updateBuffer = defaultUpdateBuffer
	}
	s := &System{
		registry: NewRegistry(),
		updates:  make(chan RouteChange, updateBuffer),
		logger:   logger,
	}
	// Initialize the cached view with an empty, non-nil snapshot.
	s.cachedView.Store(s.registry.view())
	return s
}

// NewSystemFromView creates a concurrency-safe system from a snapshot view.
// It reconstructs the underlying registry and immediately initializes the
// read-optimized cache. No RouteChange notifications are emitted for the
// restored entries.
func NewSystemFromView(logger Logger, updateBuffer int, view *TableView) *System {
	s := NewSystem(logger, updateBuffer)
	s.registry = NewRegistryFromView(view)
	s.cachedView.Store(s.registry.view())
	return s
}

// updateCachedView generates a fresh view from the registry and atomically
// updates the pointer. MUST be called from within a write lock (s.mu.Lock).
func (s *System) updateCachedView() {
	s.cachedView.Store(s.registry.view())
}

// Put commits an entry (last write wins) and emits a RouteChange. The entry
// is deep-copied on the way in so the caller cannot alias stored state.
func (s *System) Put(entry RouteEntry) {
	s.mu.Lock()
	s.registry.put(deepCopyEntry(entry))
	s.updateCachedView()
	s.mu.Unlock()

	s.emit(RouteChange{
		Key:     entry.Key,
		TokenA:  entry.TokenA,
		TokenB:  entry.TokenB,
		Backend: entry.Backend(),
	})
}

// ApplyDiff commits a table diff as one atomic write: deletions first, then
// updates, then additions. This is the replica path: stream followers apply
// upstream diffs without rebuilding the table. One RouteChange is emitted per
// upserted entry; deletions are silent (a RouteChange names the committed
// backend, which a deleted pair no longer has).
func (s *System) ApplyDiff(diff TableDiff) {
	s.mu.Lock()
	for _, key := range diff.Deletions {
		s.registry.delete(key)
	}
	for _, entry := range diff.Updates {
		s.registry.put(deepCopyEntry(entry))
	}
	for _, entry := range diff.Additions {
		s.registry.put(deepCopyEntry(entry))
	}
	s.updateCachedView()
	s.mu.Unlock()

	for _, entry := range diff.Updates {
		s.emit(RouteChange{
			Key:     entry.Key,
			TokenA:  entry.TokenA,
			TokenB:  entry.TokenB,
			Backend: entry.Backend(),
		})
	}
	for _, entry := range diff.Additions {
		s.emit(RouteChange{
			Key:     entry.Key,
			TokenA:  entry.TokenA,
			TokenB:  entry.TokenB,
			Backend: entry.Backend(),
		})
	}
}

// Get returns a deep copy of the committed entry for key. The copy keeps
// callers from mutating registry-owned payloads through the shared config.
func (s *System) Get(key PairKey) (RouteEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.registry.get(key)
	if !ok {
		return RouteEntry{}, false
	}
	return deepCopyEntry(entry), true
}

// Len returns the number of committed entries.
func (s *System) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.len()
}

// View returns a thread-safe, deep copy of the routing table. Reads are
// served from the atomic cache, so concurrent swaps never block on writers.
func (s *System) View() *TableView {
	cached := s.cachedView.Load()
	if cached == nil {
		return &TableView{Entries: map[PairKey]RouteEntry{}}
	}
	// Deep copy so the caller cannot modify the shared cache.
	return cached.Clone()
}

// Updates returns the RouteChange notification channel. Delivery is
// best-effort: if the consumer is slow, notifications are dropped.
func (s *System) Updates() <-chan RouteChange {
	return s.updates
}

// Close closes the update channel so range-based consumers terminate. The
// caller must guarantee no Put or ApplyDiff is in flight or issued after
// Close; the System does not guard the channel against late sends.
func (s *System) Close() {
	close(s.updates)
}

func (s *System) emit(change RouteChange) {
	select {
	case s.updates <- change:
	default:
		s.logger.Warn("Update buffer full, discarding route change...",
			"pairKey", change.Key.Hex(),
			"backend", change.Backend,
		)
	}
}
