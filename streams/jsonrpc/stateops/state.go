package stateops

import (
	"encoding/json"
	"errors"

	"github.com/defistate/defistate-router-go/differ"
	"github.com/defistate/defistate-router-go/engine"
	"github.com/defistate/defistate-router-go/patcher"
	"github.com/defistate/defistate-router-go/routing"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StateOps encapsulates the core business logic for processing routing state.
//
// It acts as a unified facade for two critical operations:
// 1. Differ: Calculating the delta between two states (Used by the Server/Engine).
// 2. Patcher: Applying a delta to a previous state to reconstruct the present (Used by a Client).
type StateOps struct {
	*differ.StateDiffer
	*patcher.StatePatcher

	codec *routing.Codec
}

// NewStateOps wires the routing table schema into the generic diff/patch
// engines. The codec decides which backend payloads this process can decode,
// so it is registered at wiring time rather than hardcoded here.
func NewStateOps(
	logger Logger,
	prometheusRegistry prometheus.Registerer,
	codec *routing.Codec,
) (*StateOps, error) {
	if codec == nil {
		return nil, errors.New("stateops: codec is required")
	}

	tableDiffers := map[engine.TableSchema]differ.TableDiffer{
		routing.Schema: routing.DiffTables,
	}

	tablePatchers := map[engine.TableSchema]patcher.PatcherFunc{
		routing.Schema: routing.PatchTable,
	}

	stateDiffer, err := differ.NewStateDiffer(&differ.StateDifferConfig{
		TableDiffers: tableDiffers,
		Logger:       logger,
		Registry:     prometheusRegistry,
	})
	if err != nil {
		return nil, err
	}

	statePatcher, err := patcher.NewStatePatcher(&patcher.StatePatcherConfig{
		Patchers: tablePatchers,
	})
	if err != nil {
		return nil, err
	}

	return &StateOps{
		StateDiffer:  stateDiffer,
		StatePatcher: statePatcher,
		codec:        codec,
	}, nil
}

func (ops *StateOps) DecodeStateJSON(
	schema engine.TableSchema,
	data json.RawMessage,
) (any, error) {
	switch schema {
	case routing.Schema:
		return ops.codec.DecodeView(data)
	default:
		return nil, errors.New("unknown schema")
	}
}

func (ops *StateOps) DecodeStateDiffJSON(
	schema engine.TableSchema,
	data json.RawMessage,
) (any, error) {
	switch schema {
	case routing.Schema:
		return ops.codec.DecodeDiff(data)
	default:
		return nil, errors.New("unknown schema")
	}
}
