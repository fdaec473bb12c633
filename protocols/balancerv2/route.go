package balancerv2

import (
	"encoding/json"
	"fmt"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
)

// Schema is the decode contract for weighted-vault route payloads.
const Schema engine.TableSchema = "defistate/weighted-vault/Route@v1"

// Route configures a weighted-vault route: the pools to swap through, in
// order, and the connector token joining each consecutive pool pair. A
// single pool with no connectors is the direct form.
type Route struct {
	Pools      []PoolID         `json:"pools"`
	Connectors []common.Address `json:"connectors,omitempty"`
}

func (r Route) Backend() engine.Backend {
	return engine.BackendWeightedVaultBatch
}

// Validate checks the payload shape. Pool existence and connector membership
// are BuildRoute's job.
func (r Route) Validate() error {
	if len(r.Pools) == 0 {
		return fmt.Errorf("%w: route needs at least one pool", engine.ErrInvalidInput)
	}
	if len(r.Connectors) != len(r.Pools)-1 {
		return fmt.Errorf("%w: %d pools need %d connectors, got %d", engine.ErrInvalidInput, len(r.Pools), len(r.Pools)-1, len(r.Connectors))
	}
	for _, id := range r.Pools {
		if id.IsZero() {
			return fmt.Errorf("%w: pool id must be non-zero", engine.ErrInvalidInput)
		}
	}
	for _, connector := range r.Connectors {
		if connector == (common.Address{}) {
			return fmt.Errorf("%w: connector must be a non-zero address", engine.ErrInvalidInput)
		}
	}
	return nil
}

func (r Route) Clone() engine.RouteConfig {
	clone := Route{}
	if r.Pools != nil {
		clone.Pools = make([]PoolID, len(r.Pools))
		copy(clone.Pools, r.Pools)
	}
	if r.Connectors != nil {
		clone.Connectors = make([]common.Address, len(r.Connectors))
		copy(clone.Connectors, r.Connectors)
	}
	return clone
}

func (r Route) Equal(other engine.RouteConfig) bool {
	o, ok := other.(Route)
	if !ok {
		return false
	}
	if len(r.Pools) != len(o.Pools) || len(r.Connectors) != len(o.Connectors) {
		return false
	}
	for i := range r.Pools {
		if r.Pools[i] != o.Pools[i] {
			return false
		}
	}
	for i := range r.Connectors {
		if r.Connectors[i] != o.Connectors[i] {
			return false
		}
	}
	return true
}

// RouteParams carries one pool id per consecutive token pair of the sequence
// being registered.
type RouteParams struct {
	Pools []PoolID
}

func (RouteParams) Backend() engine.Backend {
	return engine.BackendWeightedVaultBatch
}

// Reverse flips the pool order to describe the opposite swap direction.
func (p RouteParams) Reverse() engine.RouteParams {
	if len(p.Pools) == 0 {
		return RouteParams{}
	}
	pools := make([]PoolID, len(p.Pools))
	for i, id := range p.Pools {
		pools[len(pools)-1-i] = id
	}
	return RouteParams{Pools: pools}
}

// DecodeRoute decodes a weighted-vault payload for the routing codec.
func DecodeRoute(raw json.RawMessage) (engine.RouteConfig, error) {
	var route Route
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &route); err != nil {
			return nil, err
		}
	}
	return route, nil
}
