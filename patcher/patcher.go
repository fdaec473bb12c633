package patcher

import (
	"errors"
	"fmt"

	differ "github.com/defistate/defistate-router-go/differ"
	engine "github.com/defistate/defistate-router-go/engine"
)

// PatcherFunc applies a table diff to a previous table payload and returns
// the rebuilt payload.
//
// CONTRACT:
// 1. Immutability: implementations MUST NOT mutate prevState; they copy.
// 2. nil handling: prevState may be nil when the diff adds a new table.
type PatcherFunc func(prevState any, diffData any) (newState any, err error)

// StatePatcherConfig maps each table schema to the function that knows how
// to patch payloads of that schema.
type StatePatcherConfig struct {
	Patchers map[engine.TableSchema]PatcherFunc
}

func (c *StatePatcherConfig) validate() error {
	for _, patcher := range c.Patchers {
		if patcher == nil {
			return errors.New("patcher cannot be nil")
		}
	}
	return nil
}

// StatePatcher is the generic engine for applying sequenced state diffs.
type StatePatcher struct {
	patchers map[engine.TableSchema]PatcherFunc
}

// NewStatePatcher constructs a new patcher from a configuration. The patcher
// map is copied; later mutation of the config does not leak in.
func NewStatePatcher(cfg *StatePatcherConfig) (*StatePatcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	patchers := make(map[engine.TableSchema]PatcherFunc, len(cfg.Patchers))
	for schema, fn := range cfg.Patchers {
		patchers[schema] = fn
	}
	return &StatePatcher{patchers: patchers}, nil
}

// Patch builds the state at diff.ToSequence from the state at
// diff.FromSequence. Tables the diff never mentions are shared by reference
// into the result; touched tables are rebuilt by their schema's PatcherFunc.
// oldState itself is never mutated.
func (p *StatePatcher) Patch(oldState *engine.RouteState, diff *differ.RouteStateDiff) (*engine.RouteState, error) {
	// A diff only composes with the exact state it was computed against.
	if oldState.Sequence != diff.FromSequence {
		return nil, fmt.Errorf("patcher: mismatch fromSequence (state=%d, diff=%d)", oldState.Sequence, diff.FromSequence)
	}

	tables := make(map[engine.TableID]engine.TableState, len(oldState.Tables))
	for id, tbl := range oldState.Tables {
		tables[id] = tbl
	}

	for id, td := range diff.Tables {
		fn, ok := p.patchers[td.Schema]
		if !ok {
			return nil, fmt.Errorf("patcher: no patcher registered for schema %q (table=%s)", td.Schema, id)
		}

		// prev stays nil for tables the old state never carried.
		var prev any
		if old, exists := oldState.Tables[id]; exists {
			if old.Schema != td.Schema {
				return nil, fmt.Errorf("patcher: schema mismatch for table %s (old=%s, diff=%s)", id, old.Schema, td.Schema)
			}
			prev = old.Data
		}

		data, err := fn(prev, td.Data)
		if err != nil {
			return nil, fmt.Errorf("patcher: failed to patch table %s: %w", id, err)
		}

		// The diff's metadata is the newer truth.
		tables[id] = engine.TableState{
			Meta:   td.Meta,
			Schema: td.Schema,
			Data:   data,
			Error:  td.Error,
		}
	}

	return &engine.RouteState{
		ChainID:   oldState.ChainID,
		Timestamp: diff.Timestamp,
		Sequence:  diff.ToSequence,
		Tables:    tables,
	}, nil
}
