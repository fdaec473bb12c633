package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	differ "github.com/defistate/defistate-router-go/differ"
	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Setup: mock hub ---

// mockHub is a websocket JSON-RPC server that replays a fixed event list to
// every subscriber of defi_subscribeStateStream.
type mockHub struct {
	events chan *SubscriptionEvent
	t      *testing.T
}

func startMockHub(ctx context.Context, t *testing.T, port int, events []*SubscriptionEvent) error {
	queue := make(chan *SubscriptionEvent, len(events))
	for _, e := range events {
		queue <- e
	}
	close(queue)

	server := rpc.NewServer()
	if err := server.RegisterName(RpcNamespace, &mockHub{events: queue, t: t}); err != nil {
		return fmt.Errorf("failed to register API: %v", err)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server.WebsocketHandler([]string{"*"}),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("mock hub stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		server.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	return nil
}

func (h *mockHub) SubscribeStateStream(ctx context.Context) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}

	sub := notifier.CreateSubscription()
	go func() {
		for event := range h.events {
			select {
			case <-sub.Err():
				return
			default:
				if err := notifier.Notify(sub.ID, event); err != nil {
					h.t.Logf("Error notifying subscriber: %v", err)
					return
				}
			}
		}
	}()
	return sub, nil
}

// --- Fixtures ---

// passthroughDecoder stands in for the routing codec: it just unmarshals the
// payload into a generic map so assertions can poke at it.
var passthroughDecoder = func(schema engine.TableSchema, data json.RawMessage) (any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var generic map[string]any
	err := json.Unmarshal(data, &generic)
	return generic, err
}

// stubPatcher advances the sequence without touching tables.
var stubPatcher = func(prevState *engine.RouteState, diff *differ.RouteStateDiff) (*engine.RouteState, error) {
	return &engine.RouteState{
		ChainID:   prevState.ChainID,
		Sequence:  diff.ToSequence,
		Timestamp: diff.Timestamp,
		Tables:    map[engine.TableID]engine.TableState{},
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const followedTable = engine.TableID("routing_mainnet")

// hubEvents builds the canonical replay script: a full snapshot at sequence
// 100, the diff 100→101, a malformed payload, and a second full snapshot.
func hubEvents(t *testing.T) []*SubscriptionEvent {
	mustMarshal := func(v interface{}) json.RawMessage {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		return data
	}
	schema := engine.TableSchema("defistate/routing/TableView@v1")

	full := engine.RouteState{
		ChainID:   1,
		Sequence:  100,
		Timestamp: uint64(time.Now().UnixNano()),
		Tables: map[engine.TableID]engine.TableState{
			followedTable: {
				Meta:   engine.TableMeta{Name: "Mainnet Routes"},
				Schema: schema,
				Data:   map[string]interface{}{"id": 1, "routes": 1000},
			},
		},
	}

	// differ.RouteStateDiff carries the JSON tags the client expects, so the
	// standard marshal round-trips cleanly.
	diff := differ.RouteStateDiff{
		FromSequence: 100,
		ToSequence:   101,
		Timestamp:    uint64(time.Now().UnixNano()),
		Tables: map[engine.TableID]differ.TableDiff{
			followedTable: {
				Schema: schema,
				Data:   map[string]interface{}{"id": 1, "routes": 12345},
			},
		},
	}

	fullAfterGap := engine.RouteState{
		ChainID:   1,
		Sequence:  2,
		Timestamp: uint64(time.Now().UnixNano()),
	}

	return []*SubscriptionEvent{
		{Type: "full", Payload: mustMarshal(full)},
		{Type: "diff", Payload: mustMarshal(diff)},
		{Type: "full", Payload: json.RawMessage(`{"sequence":"not-a-number"}`)},
		{Type: "full", Payload: mustMarshal(fullAfterGap)},
	}
}

func dialTestClient(t *testing.T, ctx context.Context, port int, patcher StatePatcherFunc) *Client {
	c, err := NewClient(ctx, Config{
		URL:              fmt.Sprintf("ws://localhost:%d", port),
		Logger:           testLogger(),
		BufferSize:       10,
		StatePatcher:     patcher,
		StateDecoder:     passthroughDecoder,
		StateDiffDecoder: passthroughDecoder,
	})
	require.NoError(t, err)
	return c
}

// --- Client tests ---

func TestClient_SuccessfulSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := hubEvents(t)
	require.NoError(t, startMockHub(ctx, t, 9611, events[:1]))

	c := dialTestClient(t, ctx, 9611, stubPatcher)

	select {
	case state := <-c.State():
		assert.Equal(t, uint64(100), state.Sequence)
		tbl, ok := state.Tables[followedTable]
		require.True(t, ok, "followed table should be present")
		data := tbl.Data.(map[string]any)
		assert.Equal(t, float64(1), data["id"])
	case <-time.After(2 * time.Second):
		t.Fatal("Test timed out waiting for the first snapshot")
	}
}

func TestClient_DiffReconstruction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := hubEvents(t)
	require.NoError(t, startMockHub(ctx, t, 9612, events[:2]))

	patcherCalled := false
	patcher := func(prevState *engine.RouteState, diff *differ.RouteStateDiff) (*engine.RouteState, error) {
		patcherCalled = true
		require.NotNil(t, prevState)
		require.NotNil(t, diff)

		assert.Equal(t, uint64(100), prevState.Sequence)
		assert.Equal(t, uint64(100), diff.FromSequence)
		assert.Equal(t, uint64(101), diff.ToSequence)

		tblDiff, ok := diff.Tables[followedTable]
		require.True(t, ok)
		data := tblDiff.Data.(map[string]any)
		assert.Equal(t, float64(12345), data["routes"])

		return &engine.RouteState{
			ChainID:  prevState.ChainID,
			Sequence: diff.ToSequence,
			Tables:   make(map[engine.TableID]engine.TableState),
		}, nil
	}

	c := dialTestClient(t, ctx, 9612, patcher)

	select {
	case state := <-c.State():
		assert.Equal(t, uint64(100), state.Sequence)
	case <-time.After(2 * time.Second):
		t.Fatal("Test timed out waiting for the initial snapshot")
	}

	select {
	case state := <-c.State():
		assert.Equal(t, uint64(101), state.Sequence)
	case <-time.After(2 * time.Second):
		t.Fatal("Test timed out waiting for the patched state")
	}

	assert.True(t, patcherCalled, "the injected patcher should have been called")
}

func TestClient_DropsMalformedMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Snapshot, malformed payload, snapshot: the bad one is logged and
	// skipped, both good ones come through.
	events := hubEvents(t)
	require.NoError(t, startMockHub(ctx, t, 9613, append(events[0:1], events[2:4]...)))

	c := dialTestClient(t, ctx, 9613, stubPatcher)

	seen := map[uint64]bool{}
	for i := 0; i < 2; i++ {
		select {
		case state := <-c.State():
			seen[state.Sequence] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("Test timed out waiting for state %d", i+1)
		}
	}
	assert.True(t, seen[100])
	assert.True(t, seen[2])
}

func TestClient_Reconnection(t *testing.T) {
	const port = 9614
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := dialTestClient(t, ctx, port, stubPatcher)

	hub1Ctx, stopHub1 := context.WithCancel(ctx)
	first := []*SubscriptionEvent{{Type: "full", Payload: json.RawMessage(`{"sequence":1}`)}}
	require.NoError(t, startMockHub(hub1Ctx, t, port, first))

	select {
	case state := <-c.State():
		assert.Equal(t, uint64(1), state.Sequence)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the first hub's snapshot")
	}

	// Kill the hub and bring up a replacement on the same port; the client
	// should back off and resubscribe on its own.
	stopHub1()
	time.Sleep(100 * time.Millisecond)

	hub2Ctx, stopHub2 := context.WithCancel(ctx)
	defer stopHub2()
	second := []*SubscriptionEvent{{Type: "full", Payload: json.RawMessage(`{"sequence":2}`)}}
	require.NoError(t, startMockHub(hub2Ctx, t, port, second))

	select {
	case state := <-c.State():
		assert.Equal(t, uint64(2), state.Sequence)
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the client to reconnect")
	}
}

// --- StreamProcessor tests ---

func TestStreamProcessor_FullAndDiffFlow(t *testing.T) {
	sp := NewStreamProcessor(testLogger(), 10, stubPatcher, passthroughDecoder, passthroughDecoder)

	events := hubEvents(t)

	raw, err := json.Marshal(events[0])
	require.NoError(t, err)
	require.NoError(t, sp.ProcessMessage(raw))

	select {
	case state := <-sp.State():
		assert.Equal(t, uint64(100), state.Sequence)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for the full state")
	}

	raw, err = json.Marshal(events[1])
	require.NoError(t, err)
	require.NoError(t, sp.ProcessMessage(raw))

	select {
	case state := <-sp.State():
		assert.Equal(t, uint64(101), state.Sequence)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for the patched state")
	}
}

func TestStreamProcessor_ValidationErrors(t *testing.T) {
	sp := NewStreamProcessor(testLogger(), 10, stubPatcher, passthroughDecoder, passthroughDecoder)

	events := hubEvents(t)

	t.Run("should reject a diff before any full state", func(t *testing.T) {
		raw, _ := json.Marshal(events[1])
		err := sp.ProcessMessage(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "received diff before full state")
	})

	t.Run("should reject malformed JSON", func(t *testing.T) {
		require.Error(t, sp.ProcessMessage([]byte(`{not-json}`)))
	})

	t.Run("should reject an unknown event type", func(t *testing.T) {
		require.Error(t, sp.ProcessMessage([]byte(`{"type":"partial","payload":{}}`)))
	})
}

func TestStreamProcessor_OutOfOrderDiff(t *testing.T) {
	sp := NewStreamProcessor(testLogger(), 10, stubPatcher, passthroughDecoder, passthroughDecoder)

	events := hubEvents(t)
	raw, _ := json.Marshal(events[0]) // sequence 100
	require.NoError(t, sp.ProcessMessage(raw))
	<-sp.State()

	wrapDiff := func(d differ.RouteStateDiff) json.RawMessage {
		payload, err := json.Marshal(d)
		require.NoError(t, err)
		raw, err := json.Marshal(&SubscriptionEvent{Type: "diff", Payload: payload})
		require.NoError(t, err)
		return raw
	}

	// A diff 105→106 does not extend sequence 100: the processor must
	// surface the gap so the networking layer resubscribes, and must not
	// emit a state built across it.
	err := sp.ProcessMessage(wrapDiff(differ.RouteStateDiff{
		FromSequence: 105,
		ToSequence:   106,
		Timestamp:    uint64(time.Now().UnixNano()),
		Tables:       map[engine.TableID]differ.TableDiff{},
	}))
	require.ErrorIs(t, err, errSequenceGap)

	select {
	case <-sp.State():
		t.Fatal("Should not emit state for an out-of-order diff")
	default:
	}

	// A diff that extends the last good state is still accepted.
	require.NoError(t, sp.ProcessMessage(wrapDiff(differ.RouteStateDiff{
		FromSequence: 100,
		ToSequence:   101,
		Timestamp:    uint64(time.Now().UnixNano()),
		Tables:       map[engine.TableID]differ.TableDiff{},
	})))

	select {
	case state := <-sp.State():
		assert.Equal(t, uint64(101), state.Sequence)
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for the contiguous diff state")
	}
}
