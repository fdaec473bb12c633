package uniswapv2

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
)

// PairSource reports live pool existence against the venue's factory.
type PairSource interface {
	PairExists(ctx context.Context, tokenA, tokenB common.Address) (bool, error)
}

// PathExecutor is the venue's exact-input-along-path swap primitive. The
// returned slice carries one amount per path token, the realized output last.
type PathExecutor interface {
	SwapExactTokensForTokens(ctx context.Context, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]*big.Int, error)
}

// TokenApprover grants a spender an allowance over a token, all or nothing.
type TokenApprover interface {
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) error
}

// Config wires the adapter's collaborators. Router is the venue router
// address, used as the approval spender before every swap.
type Config struct {
	Pairs    PairSource
	Executor PathExecutor
	Tokens   TokenApprover
	Router   common.Address
}

func (c *Config) validate() error {
	if c.Pairs == nil {
		return errors.New("config: Pairs is required")
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

// Adapter executes swaps against a constant-product venue.
type Adapter struct {
	pairs    PairSource
	executor PathExecutor
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
		pairs:    cfg.Pairs,
		executor: cfg.Executor,
		tokens:   cfg.Tokens,
		router:   cfg.Router,
	}, nil
}

func (a *Adapter) Backend() engine.Backend {
	return engine.BackendConstantProduct
}

// BuildRoute checks that every consecutive pair in the token sequence has a
// live pool, then returns the payload: the sequence's interior tokens.
func (a *Adapter) BuildRoute(ctx context.Context, tokens []common.Address, params engine.RouteParams) (engine.RouteConfig, error) {
	if _, ok := params.(RouteParams); !ok {
		return nil, fmt.Errorf("%w: constant-product adapter received %T params", engine.ErrUnsupportedBackend, params)
	}
	if len(tokens) < 2 {
		return nil, fmt.Errorf("%w: route needs at least two tokens", engine.ErrInvalidInput)
	}

	for i := 0; i < len(tokens)-1; i++ {
		exists, err := a.pairs.PairExists(ctx, tokens[i], tokens[i+1])
		if err != nil {
			return nil, &engine.DependencyError{Dependency: "v2 factory", Err: err}
		}
		if !exists {
			return nil, fmt.Errorf("%w: no constant-product pool for %s/%s", engine.ErrPoolNotFound, tokens[i], tokens[i+1])
		}
	}

	var hops []common.Address
	if len(tokens) > 2 {
		hops = make([]common.Address, len(tokens)-2)
		copy(hops, tokens[1:len(tokens)-1])
	}
	return Route{HopTokens: hops}, nil
}

// Execute grants the router an allowance of exactly req.AmountIn, swaps along
// the configured path, and returns the realized output. Deadline and minimum
// output are the venue's to enforce; its failures propagate unchanged.
func (a *Adapter) Execute(ctx context.Context, cfg engine.RouteConfig, req engine.SwapRequest) (*big.Int, error) {
	route, ok := cfg.(Route)
	if !ok {
		return nil, fmt.Errorf("%w: constant-product adapter received %T config", engine.ErrUnsupportedBackend, cfg)
	}

	// tokenIn, ...hops..., tokenOut
	path := make([]common.Address, 0, len(route.HopTokens)+2)
	path = append(path, req.TokenIn)
	path = append(path, route.HopTokens...)
	path = append(path, req.TokenOut)

	if err := a.tokens.Approve(ctx, req.TokenIn, a.router, req.AmountIn); err != nil {
		return nil, &engine.DependencyError{Dependency: "token approver", Err: err}
	}

	amounts, err := a.executor.SwapExactTokensForTokens(ctx, req.AmountIn, req.MinAmountOut, path, req.Recipient, req.Deadline)
	if err != nil {
		return nil, &engine.DependencyError{Dependency: "v2 router", Err: err}
	}
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("%w: %d amounts returned for a %d-token path", engine.ErrBackendResponseMismatch, len(amounts), len(path))
	}

	return amounts[len(amounts)-1], nil
}
