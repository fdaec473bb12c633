package differ

import (
	"errors"
	"fmt"
	"time"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/prometheus/client_golang/prometheus"
)

// TableDiffer computes the delta between two versions of one table's Data.
// Differs are keyed by schema, so a single function serves every table that
// shares a data contract.
type TableDiffer func(old, new any) (diff any, err error)

// StateDifferConfig wires the per-schema differs with their dependencies.
type StateDifferConfig struct {
	// One differ per schema (data contract), not per table identity.
	TableDiffers map[engine.TableSchema]TableDiffer
	Registry     prometheus.Registerer
	Logger       Logger
}

func (c *StateDifferConfig) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	return nil
}

// StateDiffer turns two sequenced route states into a RouteStateDiff by
// dispatching each table to the differ registered for its schema.
type StateDiffer struct {
	metrics      *Metrics
	logger       Logger
	tableDiffers map[engine.TableSchema]TableDiffer
}

func NewStateDiffer(cfg *StateDifferConfig) (*StateDiffer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	differs := make(map[engine.TableSchema]TableDiffer, len(cfg.TableDiffers))
	for schema, fn := range cfg.TableDiffers {
		differs[schema] = fn
	}

	return &StateDiffer{
		metrics:      NewMetrics(cfg.Registry),
		logger:       cfg.Logger,
		tableDiffers: differs,
	}, nil
}

// Diff computes the table-by-table delta from old to new. Both states must be
// error-free, and every table in new must already exist in old: table creation
// travels through full snapshots, not diffs.
func (d *StateDiffer) Diff(old, new *engine.RouteState) (*RouteStateDiff, error) {
	timer := prometheus.NewTimer(d.metrics.diffDuration.WithLabelValues())
	defer timer.ObserveDuration()

	if old.HasErrors() || new.HasErrors() {
		return nil, errors.New("differ: cannot diff states carrying table errors")
	}

	tables := make(map[engine.TableID]TableDiff, len(new.Tables))
	for id, next := range new.Tables {
		prev, ok := old.Tables[id]
		if !ok {
			return nil, fmt.Errorf("tableID %s does not exist in old state", id)
		}

		fn, ok := d.tableDiffers[next.Schema]
		if !ok {
			return nil, fmt.Errorf("no differ registered for schema %q", next.Schema)
		}

		data, err := fn(prev.Data, next.Data)
		if err != nil {
			return nil, fmt.Errorf("differ: table %s: %w", id, err)
		}

		tables[id] = TableDiff{
			Meta:   next.Meta,
			Schema: next.Schema,
			Data:   data,
		}
	}

	d.logger.Debug("Computed route state diff",
		"from_sequence", old.Sequence,
		"to_sequence", new.Sequence,
		"tables", len(tables),
	)

	return &RouteStateDiff{
		Timestamp:    uint64(time.Now().UnixNano()),
		FromSequence: old.Sequence,
		ToSequence:   new.Sequence,
		Tables:       tables,
	}, nil
}
