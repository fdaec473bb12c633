package client

import (
	"encoding/json"

	"github.com/defistate/defistate-router-go/engine"
)

// wireState mirrors engine.RouteState with every table's Data held as raw
// bytes. Decoding is deferred until the schema tag picks the typed form;
// letting encoding/json guess would produce map[string]interface{}.
type wireState struct {
	ChainID   uint64                       `json:"chainId"`
	Sequence  uint64                       `json:"sequence"`
	Timestamp uint64                       `json:"timestamp"`
	Tables    map[engine.TableID]wireTable `json:"tables"`
}

type wireTable struct {
	Meta   engine.TableMeta   `json:"meta"`
	Schema engine.TableSchema `json:"schema"`
	Error  string             `json:"error,omitempty"`
	Data   json.RawMessage    `json:"data,omitempty"`
}

// wireStateDiff mirrors differ.RouteStateDiff the same way.
type wireStateDiff struct {
	FromSequence uint64                           `json:"fromSequence"`
	ToSequence   uint64                           `json:"toSequence"`
	Timestamp    uint64                           `json:"timestamp"`
	Tables       map[engine.TableID]wireTableDiff `json:"tables"`
}

type wireTableDiff struct {
	Meta   engine.TableMeta   `json:"meta"`
	Schema engine.TableSchema `json:"schema"`
	Error  string             `json:"error,omitempty"`
	Data   json.RawMessage    `json:"data,omitempty"`
}
