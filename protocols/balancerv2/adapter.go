package balancerv2

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
)

// PoolDirectory resolves pool ids against the vault's registry. PoolAddress
// returns the zero address for an unregistered id.
type PoolDirectory interface {
	PoolAddress(ctx context.Context, id PoolID) (common.Address, error)
	PoolTokens(ctx context.Context, id PoolID) ([]common.Address, error)
}

// Vault is the venue's pair of swap primitives. Swap's limit is the minimum
// acceptable output for a given-in swap. BatchSwap returns one signed net
// flow per asset: positive amounts flow into the vault, negative out.
type Vault interface {
	Swap(ctx context.Context, single SingleSwap, funds FundManagement, limit, deadline *big.Int) (*big.Int, error)
	BatchSwap(ctx context.Context, kind SwapKind, steps []BatchSwapStep, assets []common.Address, funds FundManagement, limits []*big.Int, deadline *big.Int) ([]*big.Int, error)
}

// TokenApprover grants a spender an allowance over a token, all or nothing.
type TokenApprover interface {
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) error
}

// Config wires the adapter's collaborators. VaultAddress is the approval
// spender; Sender is the account the vault pulls input funds from.
type Config struct {
	Directory    PoolDirectory
	Vault        Vault
	Tokens       TokenApprover
	VaultAddress common.Address
	Sender       common.Address
}

func (c *Config) validate() error {
	if c.Directory == nil {
		return errors.New("config: Directory is required")
	}
	if c.Vault == nil {
		return errors.New("config: Vault is required")
	}
	if c.Tokens == nil {
		return errors.New("config: Tokens is required")
	}
	if c.VaultAddress == (common.Address{}) {
		return errors.New("config: VaultAddress is required")
	}
	if c.Sender == (common.Address{}) {
		return errors.New("config: Sender address is required")
	}
	return nil
}

// Adapter executes swaps against a weighted-pool vault.
type Adapter struct {
	directory PoolDirectory
	vault     Vault
	tokens    TokenApprover
	vaultAddr common.Address
	sender    common.Address
}

// NewAdapter constructs an adapter from a configuration, returning an error
// if the config is invalid.
func NewAdapter(cfg Config) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Adapter{
		directory: cfg.Directory,
		vault:     cfg.Vault,
		tokens:    cfg.Tokens,
		vaultAddr: cfg.VaultAddress,
		sender:    cfg.Sender,
	}, nil
}

func (a *Adapter) Backend() engine.Backend {
	return engine.BackendWeightedVaultBatch
}

// BuildRoute resolves every pool id against the vault's directory and checks
// that each connector token is a member of both pools it joins, then returns
// the payload: the pool sequence plus the sequence's interior tokens.
func (a *Adapter) BuildRoute(ctx context.Context, tokens []common.Address, params engine.RouteParams) (engine.RouteConfig, error) {
	p, ok := params.(RouteParams)
	if !ok {
		return nil, fmt.Errorf("%w: weighted-vault adapter received %T params", engine.ErrUnsupportedBackend, params)
	}
	if len(tokens) < 2 {
		return nil, fmt.Errorf("%w: route needs at least two tokens", engine.ErrInvalidInput)
	}
	if len(p.Pools) != len(tokens)-1 {
		return nil, fmt.Errorf("%w: %d tokens need %d pools, got %d", engine.ErrInvalidInput, len(tokens), len(tokens)-1, len(p.Pools))
	}

	for _, id := range p.Pools {
		addr, err := a.directory.PoolAddress(ctx, id)
		if err != nil {
			return nil, &engine.DependencyError{Dependency: "vault directory", Err: err}
		}
		if addr == (common.Address{}) {
			return nil, fmt.Errorf("%w: vault has no pool %s", engine.ErrPoolNotFound, id)
		}
	}

	// Every connector must be a member of the pool on each of its sides.
	for i := 1; i < len(tokens)-1; i++ {
		connector := tokens[i]
		for _, id := range []PoolID{p.Pools[i-1], p.Pools[i]} {
			members, err := a.directory.PoolTokens(ctx, id)
			if err != nil {
				return nil, &engine.DependencyError{Dependency: "vault directory", Err: err}
			}
			if !containsToken(members, connector) {
				return nil, fmt.Errorf("%w: connector %s is not a member of pool %s", engine.ErrInvalidPoolMembership, connector, id)
			}
		}
	}

	route := Route{Pools: make([]PoolID, len(p.Pools))}
	copy(route.Pools, p.Pools)
	if len(tokens) > 2 {
		route.Connectors = make([]common.Address, len(tokens)-2)
		copy(route.Connectors, tokens[1:len(tokens)-1])
	}
	return route, nil
}

// Execute grants the vault an allowance of exactly req.AmountIn, then swaps
// through the single-swap primitive for a direct route or builds a chained
// batch otherwise. Deadline and minimum output are the vault's to enforce;
// its failures propagate unchanged.
func (a *Adapter) Execute(ctx context.Context, cfg engine.RouteConfig, req engine.SwapRequest) (*big.Int, error) {
	route, ok := cfg.(Route)
	if !ok {
		return nil, fmt.Errorf("%w: weighted-vault adapter received %T config", engine.ErrUnsupportedBackend, cfg)
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}

	if err := a.tokens.Approve(ctx, req.TokenIn, a.vaultAddr, req.AmountIn); err != nil {
		return nil, &engine.DependencyError{Dependency: "token approver", Err: err}
	}

	funds := FundManagement{
		Sender:              a.sender,
		FromInternalBalance: false,
		Recipient:           req.Recipient,
		ToInternalBalance:   false,
	}

	if len(route.Pools) == 1 {
		out, err := a.vault.Swap(ctx, SingleSwap{
			PoolID:   route.Pools[0],
			Kind:     SwapKindGivenIn,
			AssetIn:  req.TokenIn,
			AssetOut: req.TokenOut,
			Amount:   req.AmountIn,
		}, funds, req.MinAmountOut, req.Deadline)
		if err != nil {
			return nil, &engine.DependencyError{Dependency: "vault", Err: err}
		}
		if out == nil {
			return nil, fmt.Errorf("%w: vault returned no output amount", engine.ErrBackendResponseMismatch)
		}
		return out, nil
	}

	return a.executeBatch(ctx, route, req, funds)
}

// executeBatch chains the route's pools into one atomic batch swap.
func (a *Adapter) executeBatch(ctx context.Context, route Route, req engine.SwapRequest, funds FundManagement) (*big.Int, error) {
	// --- 1. Assets: input token, connectors in hop order, output token. ---
	assets := make([]common.Address, 0, len(route.Connectors)+2)
	assets = append(assets, req.TokenIn)
	assets = append(assets, route.Connectors...)
	assets = append(assets, req.TokenOut)

	// --- 2. Steps: step i trades asset i for asset i+1 through pool i.
	// Only the first step names an amount; zero means "consume the entire
	// output of the previous step". ---
	steps := make([]BatchSwapStep, len(route.Pools))
	for i, id := range route.Pools {
		amount := new(big.Int)
		if i == 0 {
			amount = req.AmountIn
		}
		steps[i] = BatchSwapStep{
			PoolID:        id,
			AssetInIndex:  i,
			AssetOutIndex: i + 1,
			Amount:        amount,
		}
	}

	// --- 3. Signed limits: at most amountIn may flow in, at least
	// minAmountOut must flow out, connectors unconstrained. ---
	limits := make([]*big.Int, len(assets))
	limits[0] = req.AmountIn
	for i := 1; i < len(limits)-1; i++ {
		limits[i] = new(big.Int)
	}
	limits[len(limits)-1] = new(big.Int).Neg(req.MinAmountOut)

	deltas, err := a.vault.BatchSwap(ctx, SwapKindGivenIn, steps, assets, funds, limits, req.Deadline)
	if err != nil {
		return nil, &engine.DependencyError{Dependency: "vault", Err: err}
	}

	// --- 4. Conservation checks on the vault's reported net flows. ---
	if len(deltas) != len(assets) {
		return nil, fmt.Errorf("%w: %d deltas returned for %d assets", engine.ErrBackendResponseMismatch, len(deltas), len(assets))
	}
	if deltas[0] == nil || deltas[0].Cmp(req.AmountIn) != 0 {
		return nil, fmt.Errorf("%w: vault consumed %s of the input asset, want %s", engine.ErrAmountInMismatch, deltas[0], req.AmountIn)
	}
	last := deltas[len(deltas)-1]
	if last == nil || last.Sign() >= 0 {
		return nil, fmt.Errorf("%w: output asset net flow %s is not negative", engine.ErrInvalidBatchOutput, last)
	}
	return new(big.Int).Neg(last), nil
}

func containsToken(members []common.Address, token common.Address) bool {
	for _, member := range members {
		if member == token {
			return true
		}
	}
	return false
}
