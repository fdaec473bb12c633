package uniswapv2

import (
	"encoding/json"
	"fmt"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
)

// Schema is the decode contract for constant-product route payloads.
const Schema engine.TableSchema = "defistate/constant-product/Route@v1"

// Route configures a constant-product path between a pair's endpoints.
// HopTokens holds the interior tokens only; empty means the direct pool.
type Route struct {
	HopTokens []common.Address `json:"hopTokens,omitempty"`
}

func (r Route) Backend() engine.Backend {
	return engine.BackendConstantProduct
}

// Validate checks the payload shape. Pool existence is BuildRoute's job.
func (r Route) Validate() error {
	for _, hop := range r.HopTokens {
		if hop == (common.Address{}) {
			return fmt.Errorf("%w: hop token must be a non-zero address", engine.ErrInvalidInput)
		}
	}
	return nil
}

func (r Route) Clone() engine.RouteConfig {
	if r.HopTokens == nil {
		return Route{}
	}
	hops := make([]common.Address, len(r.HopTokens))
	copy(hops, r.HopTokens)
	return Route{HopTokens: hops}
}

func (r Route) Equal(other engine.RouteConfig) bool {
	o, ok := other.(Route)
	if !ok {
		return false
	}
	if len(r.HopTokens) != len(o.HopTokens) {
		return false
	}
	for i := range r.HopTokens {
		if r.HopTokens[i] != o.HopTokens[i] {
			return false
		}
	}
	return true
}

// RouteParams carries no per-hop configuration: a constant-product route is
// fully described by its token sequence.
type RouteParams struct{}

func (RouteParams) Backend() engine.Backend {
	return engine.BackendConstantProduct
}

func (p RouteParams) Reverse() engine.RouteParams {
	return p
}

// DecodeRoute decodes a constant-product payload for the routing codec.
func DecodeRoute(raw json.RawMessage) (engine.RouteConfig, error) {
	var route Route
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &route); err != nil {
			return nil, err
		}
	}
	return route, nil
}
