package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Backend identifies one of the supported swap venues. The set is closed;
// adding a venue means adding a constant here and wiring an adapter for it.
type Backend string

const (
	BackendConstantProduct       Backend = "constant-product"
	BackendConcentratedLiquidity Backend = "concentrated-liquidity"
	BackendWeightedVaultBatch    Backend = "weighted-vault-batch"
)

// Known reports whether b is one of the supported backends.
func (b Backend) Known() bool {
	switch b {
	case BackendConstantProduct, BackendConcentratedLiquidity, BackendWeightedVaultBatch:
		return true
	}
	return false
}

// RouteConfig is the backend-specific payload of a route entry. Concrete
// implementations live in the protocols packages; the tag is derived from
// the concrete type so the two can never disagree.
type RouteConfig interface {
	// Backend returns the venue this configuration belongs to.
	Backend() Backend

	// Validate performs shape-only checks (lengths, encodable values).
	// Live pool existence is the adapters' job, not Validate's.
	Validate() error

	// Clone returns a deep copy safe to hand out in view snapshots.
	Clone() RouteConfig

	// Equal reports whether other carries the same backend and payload.
	Equal(other RouteConfig) bool
}

// RouteParams is the raw per-backend input accepted when registering a
// route, before validation and payload construction. One implementation per
// backend, alongside its RouteConfig.
type RouteParams interface {
	Backend() Backend

	// Reverse returns params matching the reversed token sequence, used for
	// bidirectional registration. Per-hop values are reversed in place
	// semantics-wise; implementations must not mutate the receiver.
	Reverse() RouteParams
}

// SwapRequest is a single exact-input exchange request. Deadline is unix
// seconds and is forwarded verbatim to the venue, which enforces it.
type SwapRequest struct {
	TokenIn      common.Address `json:"tokenIn"`
	TokenOut     common.Address `json:"tokenOut"`
	AmountIn     *big.Int       `json:"amountIn"`
	MinAmountOut *big.Int       `json:"minAmountOut"`
	Deadline     *big.Int       `json:"deadline"`

	// Recipient receives the realized output directly from the venue.
	Recipient common.Address `json:"recipient"`
}

// Validate checks the request is well-formed. All violations are ErrInvalidInput.
func (r *SwapRequest) Validate() error {
	if r.TokenIn == (common.Address{}) || r.TokenOut == (common.Address{}) {
		return wrapInvalid("token addresses must be set")
	}
	if r.TokenIn == r.TokenOut {
		return wrapInvalid("tokenIn and tokenOut must differ")
	}
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return wrapInvalid("amountIn must be positive")
	}
	if r.MinAmountOut == nil || r.MinAmountOut.Sign() < 0 {
		return wrapInvalid("minAmountOut must be zero or positive")
	}
	if r.Deadline == nil {
		return wrapInvalid("deadline is required")
	}
	if r.Recipient == (common.Address{}) {
		return wrapInvalid("recipient must be set")
	}
	return nil
}

type TableName string
type TableID string

// TableSchema defines the decode contract for a table's data
type TableSchema string

type TableMeta struct {
	Name TableName `json:"name"`           // human label
	Tags []string  `json:"tags,omitempty"` // "mainnet", "canary", etc.
}

type TableState struct {
	Meta TableMeta `json:"meta"`

	// Schema is the decode contract for Data.
	// Example:
	// "defistate/routing/TableView@v1"
	Schema TableSchema `json:"schema"`

	// Data is the table view, shaped by Schema.
	Data any `json:"data,omitempty"`

	// Error is populated if this table is out-of-sync or failed at this sequence.
	Error string `json:"error,omitempty"`
}

// RouteState is the main data structure broadcast to subscribers. Sequence
// is a monotonically increasing version, bumped on every committed change.
type RouteState struct {
	ChainID   uint64                 `json:"chainId"`
	Sequence  uint64                 `json:"sequence"`
	Timestamp uint64                 `json:"timestamp"`
	Tables    map[TableID]TableState `json:"tables"`
}

func (state *RouteState) HasErrors() bool {
	// Check table-level errors
	for _, tbl := range state.Tables {
		if tbl.Error != "" {
			return true
		}
	}
	return false
}
