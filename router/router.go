package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/defistate/defistate-router-go/pricing"
	"github.com/defistate/defistate-router-go/protocols/uniswapv2"
	"github.com/defistate/defistate-router-go/routing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultMaxSlippageBps = 50

// Config wires the router's collaborators. ConstantProduct is required
// because it is the default backend for unconfigured pairs; the other two
// adapter slots may stay nil in deployments that never route through them.
type Config struct {
	Registry              *routing.System
	ConstantProduct       Adapter
	ConcentratedLiquidity Adapter
	WeightedVaultBatch    Adapter
	Logger                Logger
	PrometheusRegistry    prometheus.Registerer
}

func (c *Config) validate() error {
	if c.Registry == nil {
		return errors.New("config: Registry is required")
	}
	if c.ConstantProduct == nil {
		return errors.New("config: ConstantProduct adapter is required, it serves unconfigured pairs")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Router is the swap façade: it resolves the backend bound to a pair and
// dispatches the request to the matching venue adapter.
type Router struct {
	registry *routing.System
	adapters map[engine.Backend]Adapter
	logger   Logger
	metrics  *Metrics

	// Immutable after New (set via Options)
	oracle         pricing.Oracle
	maxSlippageBps uint16
}

// Option configures the Router.
// The interface method is unexported to prevent external modification after New.
type Option interface {
	apply(*Router)
}

type funcOption func(*Router)

func (f funcOption) apply(r *Router) {
	f(r)
}

func newOption(f func(*Router)) Option {
	return funcOption(f)
}

// WithPriceOracle enables SwapWithSlippage by wiring a quote source.
func WithPriceOracle(oracle pricing.Oracle) Option {
	return newOption(func(r *Router) {
		r.oracle = oracle
	})
}

// WithMaxSlippageBps overrides the slippage bound SwapWithSlippage applies
// to oracle quotes. Defaults to 50 bps.
func WithMaxSlippageBps(bps uint16) Option {
	return newOption(func(r *Router) {
		r.maxSlippageBps = bps
	})
}

// New constructs a Router from a configuration, returning an error if the
// config is invalid or an adapter sits in the wrong slot.
func New(cfg Config, opts ...Option) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	r := &Router{
		registry:       cfg.Registry,
		adapters:       make(map[engine.Backend]Adapter, 3),
		logger:         cfg.Logger,
		metrics:        NewMetrics(cfg.PrometheusRegistry),
		maxSlippageBps: defaultMaxSlippageBps,
	}

	slots := []struct {
		backend engine.Backend
		adapter Adapter
	}{
		{engine.BackendConstantProduct, cfg.ConstantProduct},
		{engine.BackendConcentratedLiquidity, cfg.ConcentratedLiquidity},
		{engine.BackendWeightedVaultBatch, cfg.WeightedVaultBatch},
	}
	for _, slot := range slots {
		if slot.adapter == nil {
			continue
		}
		if got := slot.adapter.Backend(); got != slot.backend {
			return nil, fmt.Errorf("config: %s slot wired to a %s adapter", slot.backend, got)
		}
		r.adapters[slot.backend] = slot.adapter
	}

	for _, opt := range opts {
		opt.apply(r)
	}
	if r.maxSlippageBps > pricing.BpsDenominator {
		return nil, fmt.Errorf("config: max slippage %d bps exceeds %d", r.maxSlippageBps, pricing.BpsDenominator)
	}

	return r, nil
}

// GetRoute returns the route entry for swapping tokenIn into tokenOut,
// oriented to that direction. Unconfigured pairs — and directions a one-way
// registration does not cover — degrade to the default, a direct
// constant-product pool. Pure lookup, never fails.
func (r *Router) GetRoute(tokenIn, tokenOut common.Address) routing.RouteEntry {
	key := routing.DerivePairKey(tokenIn, tokenOut)
	oriented := routing.RouteEntry{
		Key:    key,
		TokenA: tokenIn,
		TokenB: tokenOut,
		Config: uniswapv2.Route{},
	}

	entry, ok := r.registry.Get(key)
	switch {
	case !ok:
	case entry.TokenA == tokenIn:
		oriented.Config = entry.Config
	case entry.Reverse != nil:
		oriented.Config = entry.Reverse
	}
	return oriented
}

// GetBackend returns the venue tag bound to the pair in the given direction,
// BackendConstantProduct when unconfigured.
func (r *Router) GetBackend(tokenIn, tokenOut common.Address) engine.Backend {
	return r.GetRoute(tokenIn, tokenOut).Backend()
}

// SetRoute validates a token sequence against live venue state through the
// backend's adapter and commits the resulting route under the sequence's
// endpoint pair. With bidirectional set, the reverse payload is built and
// validated as well BEFORE anything is committed, so registration stays
// all-or-nothing. Every committed entry overwrites the pair's previous route
// entirely and emits one RouteChange on the registry's update channel.
func (r *Router) SetRoute(ctx context.Context, tokens []common.Address, params engine.RouteParams, bidirectional bool) (routing.PairKey, error) {
	if err := validateTokenSequence(tokens); err != nil {
		return routing.PairKey{}, err
	}
	if params == nil {
		return routing.PairKey{}, fmt.Errorf("%w: route params are required", engine.ErrInvalidInput)
	}
	adapter, ok := r.adapters[params.Backend()]
	if !ok {
		return routing.PairKey{}, fmt.Errorf("%w: no adapter wired for backend %q", engine.ErrUnsupportedBackend, params.Backend())
	}

	cfg, err := adapter.BuildRoute(ctx, tokens, params)
	if err != nil {
		return routing.PairKey{}, err
	}

	var reverse engine.RouteConfig
	if bidirectional {
		reverse, err = adapter.BuildRoute(ctx, reverseTokens(tokens), params.Reverse())
		if err != nil {
			return routing.PairKey{}, err
		}
	}

	entry := routing.RouteEntry{
		Key:     routing.DerivePairKey(tokens[0], tokens[len(tokens)-1]),
		TokenA:  tokens[0],
		TokenB:  tokens[len(tokens)-1],
		Config:  cfg,
		Reverse: reverse,
	}
	r.registry.Put(entry)

	r.metrics.routeUpdates.WithLabelValues(string(params.Backend())).Inc()
	r.logger.Info("Route committed",
		"pairKey", entry.Key.Hex(),
		"backend", params.Backend(),
		"hops", len(tokens)-2,
		"bidirectional", bidirectional,
	)
	return entry.Key, nil
}

// Swap resolves the backend bound to the request's pair and executes against
// it, returning the realized output. Every call is independent: no retries,
// no session state, and a failed venue call changes nothing.
func (r *Router) Swap(ctx context.Context, req engine.SwapRequest) (*big.Int, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	entry := r.GetRoute(req.TokenIn, req.TokenOut)
	backend := entry.Backend()

	adapter, ok := r.adapters[backend]
	if !ok {
		// Reachable only when a committed entry names a venue this deployment
		// never wired: a fatal configuration defect, not a user error.
		r.logger.Error("No adapter for configured backend",
			"backend", backend,
			"pairKey", entry.Key.Hex(),
		)
		return nil, fmt.Errorf("%w: no adapter wired for backend %q", engine.ErrUnsupportedBackend, backend)
	}

	timer := prometheus.NewTimer(r.metrics.swapDuration.WithLabelValues(string(backend)))
	defer timer.ObserveDuration()

	out, err := adapter.Execute(ctx, entry.Config, req)
	if err != nil {
		r.metrics.swapsTotal.WithLabelValues(string(backend), "failure").Inc()
		r.logger.Error("Swap failed",
			"backend", backend,
			"pairKey", entry.Key.Hex(),
			"error", err,
		)
		return nil, err
	}

	r.metrics.swapsTotal.WithLabelValues(string(backend), "success").Inc()
	r.logger.Debug("Swap executed",
		"backend", backend,
		"pairKey", entry.Key.Hex(),
		"amountIn", req.AmountIn.String(),
		"amountOut", out.String(),
	)
	return out, nil
}

// SwapWithSlippage derives the minimum acceptable output from the configured
// price oracle and the router's slippage bound, then swaps. Whatever
// MinAmountOut the request carried is replaced.
func (r *Router) SwapWithSlippage(ctx context.Context, req engine.SwapRequest) (*big.Int, error) {
	if r.oracle == nil {
		return nil, errors.New("router: no price oracle configured")
	}

	price, err := r.oracle.Price(ctx, req.TokenOut, req.TokenIn)
	if err != nil {
		return nil, &engine.DependencyError{Dependency: "price oracle", Err: err}
	}

	minOut, err := pricing.MinAmountOut(req.AmountIn, price, r.maxSlippageBps)
	if err != nil {
		return nil, err
	}
	req.MinAmountOut = minOut

	return r.Swap(ctx, req)
}

func validateTokenSequence(tokens []common.Address) error {
	if len(tokens) < 2 {
		return fmt.Errorf("%w: route needs at least two tokens, got %d", engine.ErrInvalidInput, len(tokens))
	}
	for i, token := range tokens {
		if token == (common.Address{}) {
			return fmt.Errorf("%w: token %d is the zero address", engine.ErrInvalidInput, i)
		}
		if i > 0 && tokens[i-1] == token {
			return fmt.Errorf("%w: consecutive duplicate token %s", engine.ErrInvalidInput, token)
		}
	}
	if tokens[0] == tokens[len(tokens)-1] {
		return fmt.Errorf("%w: route endpoints must differ", engine.ErrInvalidInput)
	}
	return nil
}

func reverseTokens(tokens []common.Address) []common.Address {
	reversed := make([]common.Address, len(tokens))
	for i, token := range tokens {
		reversed[len(tokens)-1-i] = token
	}
	return reversed
}
