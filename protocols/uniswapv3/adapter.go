package uniswapv3

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
)

// PoolSource reports live pool existence for a (pair, fee tier) against the
// venue's factory.
type PoolSource interface {
	PoolExists(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (bool, error)
}

// ExactInputSingleParams mirrors the venue router's single-hop call shape.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               uint32
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// ExactInputParams mirrors the venue router's multi-hop call shape. Path is
// replayed to the venue exactly as it was stored.
type ExactInputParams struct {
	Path             Path
	Recipient        common.Address
	Deadline         *big.Int
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

// SwapExecutor is the venue's pair of exact-input swap primitives.
type SwapExecutor interface {
	ExactInputSingle(ctx context.Context, params ExactInputSingleParams) (*big.Int, error)
	ExactInput(ctx context.Context, params ExactInputParams) (*big.Int, error)
}

// TokenApprover grants a spender an allowance over a token, all or nothing.
type TokenApprover interface {
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) error
}

// Config wires the adapter's collaborators. Router is the venue router
// address, used as the approval spender before every swap.
type Config struct {
	Pools    PoolSource
	Executor SwapExecutor
	Tokens   TokenApprover
	Router   common.Address
}

func (c *Config) validate() error {
	if c.Pools == nil {
		return errors.New("config: Pools is required")
	}
	if c.Executor == nil {
		return errors.New("config: Executor is required")
	}
	if c.Tokens == nil {
		return errors.New("config: Tokens is required")
	}
	if c.Router == (common.Address{}) {
		return errors.New("config: Router address is required")
	}
	return nil
}

// Adapter executes swaps against a concentrated-liquidity venue.
type Adapter struct {
	pools    PoolSource
	executor SwapExecutor
	tokens   TokenApprover
	router   common.Address
}

// NewAdapter constructs an adapter from a configuration, returning an error
// if the config is invalid.
func NewAdapter(cfg Config) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		pools:    cfg.Pools,
		executor: cfg.Executor,
		tokens:   cfg.Tokens,
		router:   cfg.Router,
	}, nil
}

func (a *Adapter) Backend() engine.Backend {
	return engine.BackendConcentratedLiquidity
}

// BuildRoute checks that a live pool exists for every (consecutive pair, fee)
// of the sequence, then returns the payload: the bare fee tier for a direct
// route, the encoded path otherwise.
func (a *Adapter) BuildRoute(ctx context.Context, tokens []common.Address, params engine.RouteParams) (engine.RouteConfig, error) {
	p, ok := params.(RouteParams)
	if !ok {
		return nil, fmt.Errorf("%w: concentrated-liquidity adapter received %T params", engine.ErrUnsupportedBackend, params)
	}
	if len(tokens) < 2 {
		return nil, fmt.Errorf("%w: route needs at least two tokens", engine.ErrInvalidInput)
	}
	if len(p.Fees) != len(tokens)-1 {
		return nil, fmt.Errorf("%w: %d tokens need %d fees, got %d", engine.ErrInvalidInput, len(tokens), len(tokens)-1, len(p.Fees))
	}

	for i := 0; i < len(tokens)-1; i++ {
		exists, err := a.pools.PoolExists(ctx, tokens[i], tokens[i+1], p.Fees[i])
		if err != nil {
			return nil, &engine.DependencyError{Dependency: "v3 factory", Err: err}
		}
		if !exists {
			return nil, fmt.Errorf("%w: no concentrated-liquidity pool for %s/%s at fee %d", engine.ErrPoolNotFound, tokens[i], tokens[i+1], p.Fees[i])
		}
	}

	if len(tokens) == 2 {
		return Route{Fee: p.Fees[0]}, nil
	}
	path, err := EncodePath(tokens, p.Fees)
	if err != nil {
		return nil, err
	}
	return Route{Path: path}, nil
}

// Execute grants the router an allowance of exactly req.AmountIn, then swaps
// through the single-hop primitive for a direct route or replays the stored
// path through the multi-hop primitive. The price limit is always disabled;
// req.MinAmountOut is the only output bound. Deadline and minimum output are
// the venue's to enforce; its failures propagate unchanged.
func (a *Adapter) Execute(ctx context.Context, cfg engine.RouteConfig, req engine.SwapRequest) (*big.Int, error) {
	route, ok := cfg.(Route)
	if !ok {
		return nil, fmt.Errorf("%w: concentrated-liquidity adapter received %T config", engine.ErrUnsupportedBackend, cfg)
	}

	if err := a.tokens.Approve(ctx, req.TokenIn, a.router, req.AmountIn); err != nil {
		return nil, &engine.DependencyError{Dependency: "token approver", Err: err}
	}

	var (
		out *big.Int
		err error
	)
	if route.Path.IsDirect() {
		out, err = a.executor.ExactInputSingle(ctx, ExactInputSingleParams{
			TokenIn:           req.TokenIn,
			TokenOut:          req.TokenOut,
			Fee:               route.Fee,
			Recipient:         req.Recipient,
			Deadline:          req.Deadline,
			AmountIn:          req.AmountIn,
			AmountOutMinimum:  req.MinAmountOut,
			SqrtPriceLimitX96: new(big.Int),
		})
	} else {
		out, err = a.executor.ExactInput(ctx, ExactInputParams{
			Path:             route.Path,
			Recipient:        req.Recipient,
			Deadline:         req.Deadline,
			AmountIn:         req.AmountIn,
			AmountOutMinimum: req.MinAmountOut,
		})
	}
	if err != nil {
		return nil, &engine.DependencyError{Dependency: "v3 router", Err: err}
	}
	if out == nil {
		return nil, fmt.Errorf("%w: venue returned no output amount", engine.ErrBackendResponseMismatch)
	}
	return out, nil
}
