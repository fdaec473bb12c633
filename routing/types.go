package routing

import (
	"encoding/json"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// RouteEntry binds a pair to a backend-specific route configuration. TokenA
// and TokenB record the registered direction: Config describes the route for
// swapping TokenA into TokenB. Reverse, when present, carries the pre-built
// payload for the opposite direction; one-way registrations leave it nil.
// Both payloads always belong to the same backend.
type RouteEntry struct {
	Key     PairKey            `json:"key"`
	TokenA  common.Address     `json:"tokenA"`
	TokenB  common.Address     `json:"tokenB"`
	Config  engine.RouteConfig `json:"-"`
	Reverse engine.RouteConfig `json:"-"`
}

// Backend returns the venue tag of the entry's payload, or the empty tag for
// a zero entry.
func (e RouteEntry) Backend() engine.Backend {
	if e.Config == nil {
		return ""
	}
	return e.Config.Backend()
}

// routeEntryWire is the JSON form of RouteEntry. The payloads travel in a
// backend-tagged envelope so they can be decoded by the matching codec entry.
type routeEntryWire struct {
	Key     PairKey         `json:"key"`
	TokenA  common.Address  `json:"tokenA"`
	TokenB  common.Address  `json:"tokenB"`
	Backend engine.Backend  `json:"backend"`
	Config  json.RawMessage `json:"config,omitempty"`
	Reverse json.RawMessage `json:"reverse,omitempty"`
}

// MarshalJSON encodes the entry with its backend-tagged payload envelope.
// Decoding requires a Codec, since the payload shape depends on the tag.
func (e RouteEntry) MarshalJSON() ([]byte, error) {
	wire := routeEntryWire{
		Key:    e.Key,
		TokenA: e.TokenA,
		TokenB: e.TokenB,
	}
	if e.Config != nil {
		raw, err := json.Marshal(e.Config)
		if err != nil {
			return nil, err
		}
		wire.Backend = e.Config.Backend()
		wire.Config = raw
	}
	if e.Reverse != nil {
		raw, err := json.Marshal(e.Reverse)
		if err != nil {
			return nil, err
		}
		wire.Reverse = raw
	}
	return json.Marshal(wire)
}

// RouteChange is the routing-changed notification emitted on every committed
// insertion. Field names are wire-stable: external indexers key on them.
type RouteChange struct {
	Key     PairKey        `json:"pairKey"`
	TokenA  common.Address `json:"tokenA"`
	TokenB  common.Address `json:"tokenB"`
	Backend engine.Backend `json:"backend"`
}

// TableView is a snapshot of a routing table. Views returned by System are
// deep copies the caller may keep and mutate freely.
type TableView struct {
	Entries map[PairKey]RouteEntry `json:"entries"`
}

// Clone returns a deep copy of the view.
func (v *TableView) Clone() *TableView {
	entries := make(map[PairKey]RouteEntry, len(v.Entries))
	for key, entry := range v.Entries {
		entries[key] = deepCopyEntry(entry)
	}
	return &TableView{Entries: entries}
}
