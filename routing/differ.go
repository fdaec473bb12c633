package routing

import (
	"fmt"

	"github.com/defistate/defistate-router-go/engine"
)

// TableDiff summarizes the changes between two routing table views.
type TableDiff struct {
	Additions []RouteEntry `json:"additions,omitempty"`
	Updates   []RouteEntry `json:"updates,omitempty"`
	Deletions []PairKey    `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d TableDiff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

// Differ calculates the difference between two table views.
// The views are already keyed by PairKey, so the standard list-diffing map
// build is unnecessary here:
// 1. Iterate through the new view to identify additions and updates.
// 2. Iterate through the old view to identify deletions.
func Differ(old, new *TableView) TableDiff {
	var additions []RouteEntry
	var updates []RouteEntry
	var deletions []PairKey

	// --- 1. Identify Additions and Updates ---
	for key, newEntry := range new.Entries {
		oldEntry, exists := old.Entries[key]
		if !exists {
			additions = append(additions, newEntry)
			continue
		}
		if !entriesEqual(oldEntry, newEntry) {
			updates = append(updates, newEntry)
		}
	}

	// --- 2. Identify Deletions ---
	for key := range old.Entries {
		if _, exists := new.Entries[key]; !exists {
			deletions = append(deletions, key)
		}
	}

	return TableDiff{
		Additions: additions,
		Updates:   updates,
		Deletions: deletions,
	}
}

// DiffTables adapts Differ to the generic differ engine's function contract.
// Both arguments must be *TableView.
func DiffTables(old, new any) (any, error) {
	oldView, ok := old.(*TableView)
	if !ok {
		return nil, fmt.Errorf("routing differ: old state is %T, expected *TableView", old)
	}
	newView, ok := new.(*TableView)
	if !ok {
		return nil, fmt.Errorf("routing differ: new state is %T, expected *TableView", new)
	}
	diff := Differ(oldView, newView)
	return &diff, nil
}

// entriesEqual reports whether two entries for the same key are equivalent.
// The registered direction matters: a flipped re-registration under the same
// key is a change.
func entriesEqual(a, b RouteEntry) bool {
	return a.TokenA == b.TokenA &&
		a.TokenB == b.TokenB &&
		configsEqual(a.Config, b.Config) &&
		configsEqual(a.Reverse, b.Reverse)
}

func configsEqual(a, b engine.RouteConfig) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
