package differ

import "github.com/defistate/defistate-router-go/engine"

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type TableDiff struct {
	Meta engine.TableMeta `json:"meta"`

	// Schema is the decode contract for Data.
	// Example:
	// "defistate/routing/TableView@v1"
	Schema engine.TableSchema `json:"schema"`

	// Data is the table diff, shaped by Schema.
	Data any `json:"data,omitempty"`

	// Error is populated if this table is out-of-sync or failed at this sequence.
	Error string `json:"error,omitempty"`
}

// --
// RouteStateDiff represents a summary of changes FromSequence to ToSequence.
type RouteStateDiff struct {
	Timestamp    uint64                       `json:"timestamp"`
	FromSequence uint64                       `json:"fromSequence"`
	ToSequence   uint64                       `json:"toSequence"`
	Tables       map[engine.TableID]TableDiff `json:"tables"`
}
