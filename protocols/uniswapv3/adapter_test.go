package uniswapv3

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	routerAddr = common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	recipient  = common.HexToAddress("0xFEED000000000000000000000000000000000009")
)

// --- mocks ---

type poolQuery struct {
	tokenA, tokenB common.Address
	fee            uint32
}

type mockPoolSource struct {
	calls   []poolQuery
	missing map[poolQuery]bool
	err     error
}

func (m *mockPoolSource) PoolExists(_ context.Context, tokenA, tokenB common.Address, fee uint32) (bool, error) {
	q := poolQuery{tokenA, tokenB, fee}
	m.calls = append(m.calls, q)
	if m.err != nil {
		return false, m.err
	}
	return !m.missing[q], nil
}

type mockSwapExecutor struct {
	singleCalled bool
	multiCalled  bool
	gotSingle    ExactInputSingleParams
	gotMulti     ExactInputParams
	out          *big.Int
	err          error
}

func (m *mockSwapExecutor) ExactInputSingle(_ context.Context, params ExactInputSingleParams) (*big.Int, error) {
	m.singleCalled = true
	m.gotSingle = params
	return m.out, m.err
}

func (m *mockSwapExecutor) ExactInput(_ context.Context, params ExactInputParams) (*big.Int, error) {
	m.multiCalled = true
	m.gotMulti = params
	return m.out, m.err
}

type mockTokenApprover struct {
	called  bool
	token   common.Address
	spender common.Address
	amount  *big.Int
	err     error
}

func (m *mockTokenApprover) Approve(_ context.Context, token, spender common.Address, amount *big.Int) error {
	m.called = true
	m.token = token
	m.spender = spender
	m.amount = amount
	return m.err
}

func newTestAdapter(t *testing.T) (*Adapter, *mockPoolSource, *mockSwapExecutor, *mockTokenApprover) {
	t.Helper()
	pools := &mockPoolSource{}
	executor := &mockSwapExecutor{}
	tokens := &mockTokenApprover{}
	adapter, err := NewAdapter(Config{Pools: pools, Executor: executor, Tokens: tokens, Router: routerAddr})
	require.NoError(t, err)
	return adapter, pools, executor, tokens
}

func swapRequest() engine.SwapRequest {
	return engine.SwapRequest{
		TokenIn:      tokenA,
		TokenOut:     tokenB,
		AmountIn:     big.NewInt(100),
		MinAmountOut: big.NewInt(1),
		Deadline:     big.NewInt(time.Now().Unix() + 3600),
		Recipient:    recipient,
	}
}

// --- tests ---

func TestNewAdapterValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing pool source", func(c *Config) { c.Pools = nil }},
		{"missing executor", func(c *Config) { c.Executor = nil }},
		{"missing token approver", func(c *Config) { c.Tokens = nil }},
		{"zero router address", func(c *Config) { c.Router = common.Address{} }},
	}
	for _, tc := range cases {
		t.Run("should reject a config with a "+tc.name, func(t *testing.T) {
			cfg := Config{Pools: &mockPoolSource{}, Executor: &mockSwapExecutor{}, Tokens: &mockTokenApprover{}, Router: routerAddr}
			tc.mutate(&cfg)
			_, err := NewAdapter(cfg)
			assert.Error(t, err)
		})
	}
}

func TestAdapterBuildRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("should store the bare fee tier for a direct route", func(t *testing.T) {
		adapter, pools, _, _ := newTestAdapter(t)

		cfg, err := adapter.BuildRoute(ctx, []common.Address{tokenA, tokenB}, RouteParams{Fees: []uint32{FeeMedium}})
		require.NoError(t, err)

		route, ok := cfg.(Route)
		require.True(t, ok)
		assert.Equal(t, FeeMedium, route.Fee)
		assert.True(t, route.Path.IsDirect())
		assert.Equal(t, []poolQuery{{tokenA, tokenB, FeeMedium}}, pools.calls)
	})

	t.Run("should store the encoded path for a multi-hop route", func(t *testing.T) {
		adapter, pools, _, _ := newTestAdapter(t)

		cfg, err := adapter.BuildRoute(ctx, []common.Address{tokenA, tokenB, tokenC}, RouteParams{Fees: []uint32{FeeLow, FeeMedium}})
		require.NoError(t, err)

		want, err := EncodePath([]common.Address{tokenA, tokenB, tokenC}, []uint32{FeeLow, FeeMedium})
		require.NoError(t, err)

		route := cfg.(Route)
		assert.Equal(t, want, route.Path)
		assert.Zero(t, route.Fee)
		assert.Equal(t, []poolQuery{{tokenA, tokenB, FeeLow}, {tokenB, tokenC, FeeMedium}}, pools.calls)
	})

	t.Run("should reject params built for another backend", func(t *testing.T) {
		adapter, _, _, _ := newTestAdapter(t)

		_, err := adapter.BuildRoute(ctx, []common.Address{tokenA, tokenB}, nil)
		assert.ErrorIs(t, err, engine.ErrUnsupportedBackend)
	})

	t.Run("should reject a fee count that does not match the token count", func(t *testing.T) {
		adapter, _, _, _ := newTestAdapter(t)

		_, err := adapter.BuildRoute(ctx, []common.Address{tokenA, tokenB, tokenC}, RouteParams{Fees: []uint32{FeeLow}})
		assert.ErrorIs(t, err, engine.ErrInvalidInput)
	})

	t.Run("should refuse a route through a missing pool", func(t *testing.T) {
		adapter, pools, _, _ := newTestAdapter(t)
		pools.missing = map[poolQuery]bool{{tokenB, tokenC, FeeMedium}: true}

		_, err := adapter.BuildRoute(ctx, []common.Address{tokenA, tokenB, tokenC}, RouteParams{Fees: []uint32{FeeLow, FeeMedium}})
		assert.ErrorIs(t, err, engine.ErrPoolNotFound)
	})

	t.Run("should wrap factory failures as dependency errors", func(t *testing.T) {
		adapter, pools, _, _ := newTestAdapter(t)
		rpcErr := errors.New("connection refused")
		pools.err = rpcErr

		_, err := adapter.BuildRoute(ctx, []common.Address{tokenA, tokenB}, RouteParams{Fees: []uint32{FeeLow}})

		var depErr *engine.DependencyError
		require.ErrorAs(t, err, &depErr)
		assert.Equal(t, "v3 factory", depErr.Dependency)
		assert.ErrorIs(t, err, rpcErr)
	})
}

func TestAdapterExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("should swap a direct route through the single-hop primitive", func(t *testing.T) {
		adapter, _, executor, tokens := newTestAdapter(t)
		executor.out = big.NewInt(97)
		req := swapRequest()

		out, err := adapter.Execute(ctx, Route{Fee: FeeMedium}, req)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(97), out)

		require.True(t, tokens.called)
		assert.Equal(t, tokenA, tokens.token)
		assert.Equal(t, routerAddr, tokens.spender)
		assert.Equal(t, big.NewInt(100), tokens.amount)

		require.True(t, executor.singleCalled)
		assert.False(t, executor.multiCalled)
		assert.Equal(t, tokenA, executor.gotSingle.TokenIn)
		assert.Equal(t, tokenB, executor.gotSingle.TokenOut)
		assert.Equal(t, FeeMedium, executor.gotSingle.Fee)
		assert.Equal(t, recipient, executor.gotSingle.Recipient)
		assert.Equal(t, req.Deadline, executor.gotSingle.Deadline)
		assert.Equal(t, req.MinAmountOut, executor.gotSingle.AmountOutMinimum)
		require.NotNil(t, executor.gotSingle.SqrtPriceLimitX96)
		assert.Zero(t, executor.gotSingle.SqrtPriceLimitX96.Sign())
	})

	t.Run("should replay the stored path through the multi-hop primitive", func(t *testing.T) {
		adapter, _, executor, _ := newTestAdapter(t)
		executor.out = big.NewInt(96)
		route := multiHopRoute(t)

		out, err := adapter.Execute(ctx, route, swapRequest())
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(96), out)

		require.True(t, executor.multiCalled)
		assert.False(t, executor.singleCalled)
		assert.Equal(t, route.Path, executor.gotMulti.Path)
		assert.Equal(t, recipient, executor.gotMulti.Recipient)
	})

	t.Run("should reject a config built for another backend", func(t *testing.T) {
		adapter, _, executor, _ := newTestAdapter(t)

		_, err := adapter.Execute(ctx, nil, swapRequest())
		assert.ErrorIs(t, err, engine.ErrUnsupportedBackend)
		assert.False(t, executor.singleCalled)
		assert.False(t, executor.multiCalled)
	})

	t.Run("should not swap when the approval fails", func(t *testing.T) {
		adapter, _, executor, tokens := newTestAdapter(t)
		tokens.err = errors.New("allowance reverted")

		_, err := adapter.Execute(ctx, Route{Fee: FeeMedium}, swapRequest())

		var depErr *engine.DependencyError
		require.ErrorAs(t, err, &depErr)
		assert.Equal(t, "token approver", depErr.Dependency)
		assert.False(t, executor.singleCalled)
	})

	t.Run("should wrap venue failures as dependency errors", func(t *testing.T) {
		adapter, _, executor, _ := newTestAdapter(t)
		venueErr := errors.New("execution reverted: Too little received")
		executor.err = venueErr

		_, err := adapter.Execute(ctx, Route{Fee: FeeMedium}, swapRequest())

		var depErr *engine.DependencyError
		require.ErrorAs(t, err, &depErr)
		assert.Equal(t, "v3 router", depErr.Dependency)
		assert.ErrorIs(t, err, venueErr)
	})

	t.Run("should reject a venue response with no output", func(t *testing.T) {
		adapter, _, _, _ := newTestAdapter(t)

		_, err := adapter.Execute(ctx, Route{Fee: FeeMedium}, swapRequest())
		assert.ErrorIs(t, err, engine.ErrBackendResponseMismatch)
	})
}
