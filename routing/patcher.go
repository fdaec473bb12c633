package routing

import "fmt"

// deepCopyEntry creates a new RouteEntry with its own memory for the
// payloads. This is essential to prevent a new view from sharing config
// state with the old one.
func deepCopyEntry(e RouteEntry) RouteEntry {
	newEntry := e
	if e.Config != nil {
		newEntry.Config = e.Config.Clone()
	}
	if e.Reverse != nil {
		newEntry.Reverse = e.Reverse.Clone()
	}
	return newEntry
}

// Patcher constructs a new table view by applying a diff to a previous view.
// The previous view is never mutated; every carried-over entry is deep-copied
// so the result is completely independent.
func Patcher(prev *TableView, diff TableDiff) (*TableView, error) {
	// 1. Deep copy the previous state into the working map.
	size := len(diff.Additions) + len(diff.Updates)
	if prev != nil {
		size += len(prev.Entries)
	}
	newEntries := make(map[PairKey]RouteEntry, size)
	if prev != nil {
		for key, entry := range prev.Entries {
			newEntries[key] = deepCopyEntry(entry)
		}
	}

	// 2. Process deletions.
	for _, key := range diff.Deletions {
		delete(newEntries, key)
	}

	// 3. Process updates, then additions, deep-copying on the way in.
	for _, entry := range diff.Updates {
		newEntries[entry.Key] = deepCopyEntry(entry)
	}
	for _, entry := range diff.Additions {
		newEntries[entry.Key] = deepCopyEntry(entry)
	}

	return &TableView{Entries: newEntries}, nil
}

// PatchTable adapts Patcher to the generic patcher engine's PatcherFunc
// contract: prevState may be nil for a newly added table, and the inputs are
// never mutated.
func PatchTable(prevState any, diffData any) (any, error) {
	var prev *TableView
	if prevState != nil {
		view, ok := prevState.(*TableView)
		if !ok {
			return nil, fmt.Errorf("routing patcher: previous state is %T, expected *TableView", prevState)
		}
		prev = view
	}

	diff, ok := diffData.(*TableDiff)
	if !ok {
		return nil, fmt.Errorf("routing patcher: diff is %T, expected *TableDiff", diffData)
	}

	return Patcher(prev, *diff)
}
