package uniswapv3

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/defistate/defistate-router-go/engine"
)

// Schema is the decode contract for concentrated-liquidity route payloads.
const Schema engine.TableSchema = "defistate/concentrated-liquidity/Route@v1"

// Route configures a concentrated-liquidity route. Exactly one form is
// populated: a direct pool carries its fee tier and an empty path, a
// multi-hop route carries the pre-encoded path and a zero fee.
type Route struct {
	Fee  uint32 `json:"fee,omitempty"`
	Path Path   `json:"path,omitempty"`
}

func (r Route) Backend() engine.Backend {
	return engine.BackendConcentratedLiquidity
}

// Validate checks that the fee and path forms are mutually exclusive and
// that whichever one is populated is structurally sound.
func (r Route) Validate() error {
	if r.Path.IsDirect() {
		if r.Fee == 0 {
			return fmt.Errorf("%w: direct route needs a fee tier", engine.ErrInvalidInput)
		}
		if r.Fee > maxFee {
			return fmt.Errorf("%w: fee %d exceeds the 24-bit wire encoding", engine.ErrInvalidInput, r.Fee)
		}
		return nil
	}
	if r.Fee != 0 {
		return fmt.Errorf("%w: route carries both a fee tier and an encoded path", engine.ErrInvalidInput)
	}
	if _, _, err := DecodePath(r.Path); err != nil {
		return err
	}
	return nil
}

func (r Route) Clone() engine.RouteConfig {
	clone := Route{Fee: r.Fee}
	if len(r.Path) > 0 {
		clone.Path = make(Path, len(r.Path))
		copy(clone.Path, r.Path)
	}
	return clone
}

func (r Route) Equal(other engine.RouteConfig) bool {
	o, ok := other.(Route)
	if !ok {
		return false
	}
	return r.Fee == o.Fee && bytes.Equal(r.Path, o.Path)
}

// RouteParams carries one fee tier per consecutive token pair of the
// sequence being registered.
type RouteParams struct {
	Fees []uint32
}

func (RouteParams) Backend() engine.Backend {
	return engine.BackendConcentratedLiquidity
}

// Reverse flips the per-pool fees to describe the opposite swap direction.
func (p RouteParams) Reverse() engine.RouteParams {
	if len(p.Fees) == 0 {
		return RouteParams{}
	}
	fees := make([]uint32, len(p.Fees))
	for i, fee := range p.Fees {
		fees[len(fees)-1-i] = fee
	}
	return RouteParams{Fees: fees}
}

// DecodeRoute decodes a concentrated-liquidity payload for the routing codec.
func DecodeRoute(raw json.RawMessage) (engine.RouteConfig, error) {
	var route Route
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &route); err != nil {
			return nil, err
		}
	}
	return route, nil
}
