package routing

import (
	"encoding/json"
	"fmt"

	"github.com/defistate/defistate-router-go/engine"
)

// Schema is the decode contract for routing table views on the wire. Full
// snapshots carry a TableView shaped by it, diffs carry a TableDiff.
const Schema engine.TableSchema = "defistate/routing/TableView@v1"

// DecodeFunc turns a raw backend payload into its typed RouteConfig.
type DecodeFunc func(raw json.RawMessage) (engine.RouteConfig, error)

// Codec decodes backend-tagged route payloads received off the wire.
// One decoder per backend, registered explicitly at wiring time.
type Codec struct {
	decoders map[engine.Backend]DecodeFunc
}

func NewCodec() *Codec {
	return &Codec{
		decoders: make(map[engine.Backend]DecodeFunc),
	}
}

// Register binds a decoder to a backend tag. Double registration and nil
// decoders are wiring defects.
func (c *Codec) Register(backend engine.Backend, fn DecodeFunc) error {
	if fn == nil {
		return fmt.Errorf("codec: nil decoder for backend %q", backend)
	}
	if _, exists := c.decoders[backend]; exists {
		return fmt.Errorf("codec: decoder already registered for backend %q", backend)
	}
	c.decoders[backend] = fn
	return nil
}

// DecodeEntry decodes a single wire entry, re-validates the payload shape,
// and verifies the pair key actually derives from the carried tokens.
func (c *Codec) DecodeEntry(raw json.RawMessage) (RouteEntry, error) {
	var wire routeEntryWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return RouteEntry{}, fmt.Errorf("codec: entry: %w", err)
	}
	return c.decodeWire(wire)
}

func (c *Codec) decodeWire(wire routeEntryWire) (RouteEntry, error) {
	decode, ok := c.decoders[wire.Backend]
	if !ok {
		return RouteEntry{}, fmt.Errorf("codec: no decoder registered for backend %q", wire.Backend)
	}

	cfg, err := c.decodePayload(decode, wire.Backend, wire.Config)
	if err != nil {
		return RouteEntry{}, err
	}

	// The reverse payload, when present, must decode under the same backend.
	var reverse engine.RouteConfig
	if len(wire.Reverse) > 0 {
		reverse, err = c.decodePayload(decode, wire.Backend, wire.Reverse)
		if err != nil {
			return RouteEntry{}, err
		}
	}

	if derived := DerivePairKey(wire.TokenA, wire.TokenB); derived != wire.Key {
		return RouteEntry{}, fmt.Errorf("codec: pair key %s does not derive from its tokens (expected %s)", wire.Key.Hex(), derived.Hex())
	}

	return RouteEntry{
		Key:     wire.Key,
		TokenA:  wire.TokenA,
		TokenB:  wire.TokenB,
		Config:  cfg,
		Reverse: reverse,
	}, nil
}

func (c *Codec) decodePayload(decode DecodeFunc, backend engine.Backend, raw json.RawMessage) (engine.RouteConfig, error) {
	cfg, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("codec: backend %q payload: %w", backend, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("codec: backend %q payload: %w", backend, err)
	}
	if cfg.Backend() != backend {
		return nil, fmt.Errorf("codec: decoder for %q produced a %q payload", backend, cfg.Backend())
	}
	return cfg, nil
}

// DecodeView decodes a full table snapshot.
func (c *Codec) DecodeView(raw json.RawMessage) (*TableView, error) {
	var wire struct {
		Entries map[PairKey]json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("codec: view: %w", err)
	}

	entries := make(map[PairKey]RouteEntry, len(wire.Entries))
	for key, rawEntry := range wire.Entries {
		entry, err := c.DecodeEntry(rawEntry)
		if err != nil {
			return nil, err
		}
		if entry.Key != key {
			return nil, fmt.Errorf("codec: view entry keyed %s carries key %s", key.Hex(), entry.Key.Hex())
		}
		entries[key] = entry
	}
	return &TableView{Entries: entries}, nil
}

// DecodeDiff decodes a table diff.
func (c *Codec) DecodeDiff(raw json.RawMessage) (*TableDiff, error) {
	var wire struct {
		Additions []json.RawMessage `json:"additions,omitempty"`
		Updates   []json.RawMessage `json:"updates,omitempty"`
		Deletions []PairKey         `json:"deletions,omitempty"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("codec: diff: %w", err)
	}

	diff := &TableDiff{Deletions: wire.Deletions}
	for _, rawEntry := range wire.Additions {
		entry, err := c.DecodeEntry(rawEntry)
		if err != nil {
			return nil, err
		}
		diff.Additions = append(diff.Additions, entry)
	}
	for _, rawEntry := range wire.Updates {
		entry, err := c.DecodeEntry(rawEntry)
		if err != nil {
			return nil, err
		}
		diff.Updates = append(diff.Updates, entry)
	}
	return diff, nil
}
