package routing

// Registry is a simple, non-thread-safe routing table mapping pair keys to
// route entries. Consistency rule is "last write wins": an overwritten entry
// loses its previous payload entirely, there is no versioning or rollback.
type Registry struct {
	entries map[PairKey]RouteEntry
}

// NewRegistry creates a new, empty routing table.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[PairKey]RouteEntry),
	}
}

// NewRegistryFromView reconstructs a registry from a view snapshot. It deep
// copies the view data so the new registry has full ownership of its memory.
func NewRegistryFromView(view *TableView) *Registry {
	entries := make(map[PairKey]RouteEntry, len(view.Entries))
	for key, entry := range view.Entries {
		entries[key] = deepCopyEntry(entry)
	}
	return &Registry{entries: entries}
}

func (r *Registry) put(entry RouteEntry) {
	r.entries[entry.Key] = entry
}

func (r *Registry) get(key PairKey) (RouteEntry, bool) {
	entry, ok := r.entries[key]
	return entry, ok
}

func (r *Registry) delete(key PairKey) {
	delete(r.entries, key)
}

func (r *Registry) len() int {
	return len(r.entries)
}

// view returns a deep copy of the table.
func (r *Registry) view() *TableView {
	entries := make(map[PairKey]RouteEntry, len(r.entries))
	for key, entry := range r.entries {
		entries[key] = deepCopyEntry(entry)
	}
	return &TableView{Entries: entries}
}
