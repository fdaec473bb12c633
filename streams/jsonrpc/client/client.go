package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	differ "github.com/defistate/defistate-router-go/differ"
	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/rpc"
)

// Reconnection backoff bounds.
const (
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	// RpcNamespace is the namespace the hub registers its streamer under.
	RpcNamespace = "defi"
	// StateStreamSubscriptionMethod is the subscription method within it.
	StateStreamSubscriptionMethod = "subscribeStateStream"
)

// Event kinds carried by SubscriptionEvent.Type.
const (
	eventFull = "full"
	eventDiff = "diff"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StatePatcherFunc applies a sequenced diff onto the previous state and
// returns the rebuilt state. Implementations must not mutate prevState.
type StatePatcherFunc func(prevState *engine.RouteState, diff *differ.RouteStateDiff) (newState *engine.RouteState, err error)

// DecoderFunc turns a schema-tagged raw table payload into its typed form.
type DecoderFunc func(schema engine.TableSchema, data json.RawMessage) (any, error)

// Config carries the hub endpoint and the decode/patch hooks the
// processor dispatches to.
type Config struct {
	URL              string
	Logger           Logger
	BufferSize       uint
	StatePatcher     StatePatcherFunc
	StateDecoder     DecoderFunc
	StateDiffDecoder DecoderFunc
}

func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.BufferSize < 1 {
		return errors.New("config: BufferSize must be greater than 0")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.StatePatcher == nil {
		return errors.New("config: StatePatcher is required")
	}
	if c.StateDecoder == nil {
		return errors.New("config: StateDecoder is required")
	}
	if c.StateDiffDecoder == nil {
		return errors.New("config: StateDiffDecoder is required")
	}
	return nil
}

// SubscriptionEvent is the hub's notification wrapper: a kind tag, the raw
// payload, and the server-side send time in unix nanos.
type SubscriptionEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  int64           `json:"sentAt"`
}

// errSequenceGap signals a diff that does not extend the last known state.
// The networking layer tears the subscription down and resubscribes so the
// hub re-sends a full snapshot; patching across a gap would silently desync
// the replica.
var errSequenceGap = errors.New("sequence gap between diff and last known state")

// -----------------------------------------------------------------------------
// StreamProcessor: payload decoding and diff application
// -----------------------------------------------------------------------------

// StreamProcessor turns raw subscription payloads into typed route states:
// full snapshots replace the last known state, diffs are patched onto it.
// It owns no networking; Client (or a test) feeds it.
type StreamProcessor struct {
	logger           Logger
	statePatcher     StatePatcherFunc
	stateDecoder     DecoderFunc
	stateDiffDecoder DecoderFunc

	lastState *engine.RouteState
	stateCh   chan *engine.RouteState
}

func NewStreamProcessor(
	logger Logger,
	bufferSize uint,
	statePatcher StatePatcherFunc,
	stateDecoder DecoderFunc,
	stateDiffDecoder DecoderFunc,
) *StreamProcessor {
	return &StreamProcessor{
		logger:           logger,
		statePatcher:     statePatcher,
		stateDecoder:     stateDecoder,
		stateDiffDecoder: stateDiffDecoder,
		stateCh:          make(chan *engine.RouteState, bufferSize),
	}
}

// State returns the channel on which rebuilt states are delivered in order.
func (sp *StreamProcessor) State() <-chan *engine.RouteState {
	return sp.stateCh
}

// ProcessMessage handles one raw subscription notification.
func (sp *StreamProcessor) ProcessMessage(rawData json.RawMessage) error {
	started := time.Now()

	var event SubscriptionEvent
	if err := json.Unmarshal(rawData, &event); err != nil {
		return fmt.Errorf("failed to unmarshal subscription event: %w", err)
	}

	var (
		state *engine.RouteState
		err   error
	)
	switch event.Type {
	case eventFull:
		state, err = sp.decodeFull(event.Payload)
	case eventDiff:
		state, err = sp.applyDiff(event.Payload)
	default:
		return fmt.Errorf("received unknown event type: %q", event.Type)
	}
	if err != nil {
		return err
	}

	sp.logProcessed(state, time.Since(started), event.SentAt, event.Type)

	// The emitted state becomes the base the next diff is patched onto.
	sp.lastState = state
	sp.stateCh <- state
	return nil
}

// decodeFull rebuilds a complete RouteState from a snapshot payload, running
// every table through the schema decoder.
func (sp *StreamProcessor) decodeFull(payload json.RawMessage) (*engine.RouteState, error) {
	var wire wireState
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal full state payload: %w", err)
	}

	state := &engine.RouteState{
		ChainID:   wire.ChainID,
		Sequence:  wire.Sequence,
		Timestamp: wire.Timestamp,
		Tables:    make(map[engine.TableID]engine.TableState, len(wire.Tables)),
	}
	for id, tbl := range wire.Tables {
		data, err := sp.stateDecoder(tbl.Schema, tbl.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode state for table %s: %w", id, err)
		}
		state.Tables[id] = engine.TableState{
			Meta:   tbl.Meta,
			Schema: tbl.Schema,
			Data:   data,
			Error:  tbl.Error,
		}
	}
	return state, nil
}

// applyDiff decodes a sequenced diff and patches it onto the last known
// state. A diff that does not extend it exactly yields errSequenceGap.
func (sp *StreamProcessor) applyDiff(payload json.RawMessage) (*engine.RouteState, error) {
	var wire wireStateDiff
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diff payload: %w", err)
	}
	if sp.lastState == nil {
		return nil, fmt.Errorf("received diff before full state; from_sequence: %d, to_sequence: %d", wire.FromSequence, wire.ToSequence)
	}

	diff := differ.RouteStateDiff{
		Timestamp:    wire.Timestamp,
		FromSequence: wire.FromSequence,
		ToSequence:   wire.ToSequence,
		Tables:       make(map[engine.TableID]differ.TableDiff, len(wire.Tables)),
	}
	for id, tbl := range wire.Tables {
		data, err := sp.stateDiffDecoder(tbl.Schema, tbl.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode diff data for table %s: %w", id, err)
		}
		diff.Tables[id] = differ.TableDiff{
			Meta:   tbl.Meta,
			Schema: tbl.Schema,
			Data:   data,
			Error:  tbl.Error,
		}
	}

	if last := sp.lastState.Sequence; diff.FromSequence != last {
		sp.logger.Warn("Received out-of-order diff; resubscribing for a full snapshot.",
			"last_known_sequence", last,
			"diff_from_sequence", diff.FromSequence,
			"diff_to_sequence", diff.ToSequence,
		)
		return nil, errSequenceGap
	}

	state, err := sp.statePatcher(sp.lastState, &diff)
	if err != nil {
		return nil, fmt.Errorf("failed to patch state: %w", err)
	}
	state.Timestamp = diff.Timestamp
	return state, nil
}

func (sp *StreamProcessor) logProcessed(state *engine.RouteState, processing time.Duration, sentAt int64, kind string) {
	finished := time.Now()
	transport := finished.Add(-processing).Sub(time.Unix(0, sentAt))
	total := finished.Sub(time.Unix(0, int64(state.Timestamp)))

	tableErrors := 0
	for _, tbl := range state.Tables {
		if tbl.Error != "" {
			tableErrors++
		}
	}

	sp.logger.Debug("State Processed",
		"sequence", state.Sequence,
		"type", kind,
		"tables", len(state.Tables),
		"errors", tableErrors,
		"latency_total_ms", total.Milliseconds(),
		"latency_transport_ms", transport.Milliseconds(),
		"latency_proc_ms", processing.Milliseconds(),
	)
}

// -----------------------------------------------------------------------------
// Client: connection lifecycle
// -----------------------------------------------------------------------------

// Client dials the hub, keeps the subscription alive across failures, and
// feeds every notification through a StreamProcessor.
type Client struct {
	processor *StreamProcessor
	errCh     chan error
	logger    Logger
}

// NewClient validates cfg and starts the subscribe loop in the background.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		processor: NewStreamProcessor(
			cfg.Logger,
			cfg.BufferSize,
			cfg.StatePatcher,
			cfg.StateDecoder,
			cfg.StateDiffDecoder,
		),
		errCh:  make(chan error, 1),
		logger: cfg.Logger,
	}

	go c.run(ctx, cfg.URL)
	return c, nil
}

// State exposes the processor's ordered state deliveries.
func (c *Client) State() <-chan *engine.RouteState {
	return c.processor.State()
}

// Err signals errors that stopped the client; the channel closes once the
// run loop exits.
func (c *Client) Err() <-chan error {
	return c.errCh
}

// run owns the connection lifecycle: dial, subscribe, process until the
// subscription breaks, back off, repeat. It returns only on context cancel.
func (c *Client) run(ctx context.Context, url string) {
	defer close(c.errCh)

	delay := initialReconnectDelay
	for ctx.Err() == nil {
		c.logger.Info("Connecting to routing state hub", "url", url)
		rpcClient, err := rpc.DialContext(ctx, url)
		if err != nil {
			c.logger.Error("Hub dial failed, will retry", "error", err, "delay", delay)
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		c.logger.Info("Connected to routing state hub")
		delay = initialReconnectDelay

		if err := c.subscribe(ctx, rpcClient); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Context canceled, shutting down.")
				return
			}
			c.logger.Error("Subscription ended, will reconnect", "error", err, "delay", delay)
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, maxReconnectDelay)
		}
	}
}

// subscribe holds one subscription open and pumps its notifications into the
// processor. A sequence gap is returned to the caller: tearing the
// subscription down makes the hub open the next one with a full snapshot.
func (c *Client) subscribe(ctx context.Context, rpcClient *rpc.Client) error {
	defer rpcClient.Close()

	feed := make(chan json.RawMessage)
	sub, err := rpcClient.Subscribe(ctx, RpcNamespace, feed, StateStreamSubscriptionMethod)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Subscribed to the routing state stream")
	for {
		select {
		case raw := <-feed:
			if err := c.processor.ProcessMessage(raw); err != nil {
				if errors.Is(err, errSequenceGap) {
					return err
				}
				// Malformed payloads are dropped; the stream stays
				// consistent as long as the sequence chain holds.
				c.logger.Error("Error processing message", "error", err)
			}
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sleep waits for d unless the context ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
