package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/defistate/defistate-router-go/chains"
	"github.com/defistate/defistate-router-go/protocols/balancerv2"
	"github.com/defistate/defistate-router-go/protocols/uniswapv2"
	"github.com/defistate/defistate-router-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultCallTimeout = 10 * time.Second

// ErrVenueNotConfigured is returned when a call targets a venue whose
// addresses were left out of the chain config.
var ErrVenueNotConfigured = errors.New("venue not configured")

// Config carries the chain-specific contract addresses the client executes
// against. The constant-product venue is required; the other two may be left
// zero on chains that do not carry them.
type Config struct {
	// Sender is the account every call is simulated as. It must hold the
	// input tokens for realized outputs to be meaningful.
	Sender common.Address

	V2Factory common.Address
	V2Router  common.Address
	V3Factory common.Address
	V3Router  common.Address
	Vault     common.Address
}

func (c *Config) validate() error {
	if c.Sender == (common.Address{}) {
		return errors.New("config: Sender is required")
	}
	if c.V2Factory == (common.Address{}) {
		return errors.New("config: V2Factory is required")
	}
	if c.V2Router == (common.Address{}) {
		return errors.New("config: V2Router is required")
	}
	if (c.V3Factory == common.Address{}) != (c.V3Router == common.Address{}) {
		return errors.New("config: V3Factory and V3Router must be set together")
	}
	return nil
}

// Client executes venue calls against an EVM node as eth_call simulations
// from a fixed sender, returning the venues' own return values at the
// current head. Nothing is ever broadcast.
type Client struct {
	backend bind.ContractCaller
	logger  chains.Logger
	sender  common.Address

	v2Factory *bind.BoundContract
	v2Router  *bind.BoundContract
	v3Factory *bind.BoundContract
	v3Router  *bind.BoundContract
	vault     *bind.BoundContract

	// Immutable after NewClient (set via Options)
	callTimeout time.Duration
}

// Option configures the Client.
// The interface method is unexported to prevent external modification after Dial.
type Option interface {
	apply(*Client)
}

type funcOption func(*Client)

func (f funcOption) apply(c *Client) {
	f(c)
}

func newOption(f func(*Client)) Option {
	return funcOption(f)
}

// WithCallTimeout overrides the per-call deadline applied on top of the
// caller's context. Defaults to 10s.
func WithCallTimeout(timeout time.Duration) Option {
	return newOption(func(c *Client) {
		c.callTimeout = timeout
	})
}

// Dial connects to an EVM node and wraps it in a venue client.
func Dial(ctx context.Context, rawurl string, cfg Config, logger chains.Logger, opts ...Option) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial evm node: %w", err)
	}

	client, err := NewClient(backend, cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("Venue client started", "url", rawurl, "sender", cfg.Sender.Hex())
	return client, nil
}

// NewClient wraps an existing backend, e.g. a simulated one in tests.
func NewClient(backend bind.ContractCaller, cfg Config, logger chains.Logger, opts ...Option) (*Client, error) {
	if backend == nil {
		return nil, errors.New("config: backend is required")
	}
	if logger == nil {
		return nil, errors.New("config: Logger is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		backend:     backend,
		logger:      logger,
		sender:      cfg.Sender,
		v2Factory:   bind.NewBoundContract(cfg.V2Factory, uniswapV2Factory, backend, nil, nil),
		v2Router:    bind.NewBoundContract(cfg.V2Router, uniswapV2Router, backend, nil, nil),
		callTimeout: defaultCallTimeout,
	}
	if cfg.V3Factory != (common.Address{}) {
		c.v3Factory = bind.NewBoundContract(cfg.V3Factory, uniswapV3Factory, backend, nil, nil)
		c.v3Router = bind.NewBoundContract(cfg.V3Router, uniswapV3Router, backend, nil, nil)
	}
	if cfg.Vault != (common.Address{}) {
		c.vault = bind.NewBoundContract(cfg.Vault, balancerVault, backend, nil, nil)
	}

	for _, opt := range opts {
		opt.apply(c)
	}
	return c, nil
}

func (c *Client) callOpts(ctx context.Context) (*bind.CallOpts, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	return &bind.CallOpts{Context: ctx, From: c.sender}, cancel
}

// Approve simulates an allowance grant from the sender to the spender.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	contract := bind.NewBoundContract(token, erc20, c.backend, nil, nil)
	var out []interface{}
	if err := contract.Call(opts, &out, "approve", spender, amount); err != nil {
		return fmt.Errorf("approve call failed: %w", err)
	}
	if ok := out[0].(bool); !ok {
		return fmt.Errorf("token %s refused approval for %s", token, spender)
	}
	return nil
}

// PairExists reports whether the constant-product factory has a pool for the
// pair. The factory returns the zero address for unknown pairs.
func (c *Client) PairExists(ctx context.Context, tokenA, tokenB common.Address) (bool, error) {
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	var out []interface{}
	if err := c.v2Factory.Call(opts, &out, "getPair", tokenA, tokenB); err != nil {
		return false, fmt.Errorf("getPair call failed: %w", err)
	}
	return out[0].(common.Address) != (common.Address{}), nil
}

// SwapExactTokensForTokens simulates an exact-input swap along path and
// returns the venue's per-token amounts, the realized output last.
func (c *Client) SwapExactTokensForTokens(ctx context.Context, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]*big.Int, error) {
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	var out []interface{}
	if err := c.v2Router.Call(opts, &out, "swapExactTokensForTokens", amountIn, amountOutMin, path, to, deadline); err != nil {
		return nil, fmt.Errorf("swapExactTokensForTokens call failed: %w", err)
	}

	amounts := out[0].([]*big.Int)
	c.logger.Debug("Simulated constant-product swap",
		"hops", len(path)-1,
		"amountIn", amountIn.String(),
	)
	return amounts, nil
}

// PoolExists reports whether the concentrated-liquidity factory has a pool
// for the pair at the fee tier. The factory returns the zero address for
// unknown combinations.
func (c *Client) PoolExists(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (bool, error) {
	if c.v3Factory == nil {
		return false, fmt.Errorf("%w: concentrated-liquidity", ErrVenueNotConfigured)
	}
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	var out []interface{}
	if err := c.v3Factory.Call(opts, &out, "getPool", tokenA, tokenB, big.NewInt(int64(fee))); err != nil {
		return false, fmt.Errorf("getPool call failed: %w", err)
	}
	return out[0].(common.Address) != (common.Address{}), nil
}

// ExactInputSingle simulates a single-hop exact-input swap.
func (c *Client) ExactInputSingle(ctx context.Context, params uniswapv3.ExactInputSingleParams) (*big.Int, error) {
	if c.v3Router == nil {
		return nil, fmt.Errorf("%w: concentrated-liquidity", ErrVenueNotConfigured)
	}
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	call := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Fee               *big.Int
		Recipient         common.Address
		Deadline          *big.Int
		AmountIn          *big.Int
		AmountOutMinimum  *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           params.TokenIn,
		TokenOut:          params.TokenOut,
		Fee:               big.NewInt(int64(params.Fee)),
		Recipient:         params.Recipient,
		Deadline:          params.Deadline,
		AmountIn:          params.AmountIn,
		AmountOutMinimum:  params.AmountOutMinimum,
		SqrtPriceLimitX96: params.SqrtPriceLimitX96,
	}

	var out []interface{}
	if err := c.v3Router.Call(opts, &out, "exactInputSingle", call); err != nil {
		return nil, fmt.Errorf("exactInputSingle call failed: %w", err)
	}
	return out[0].(*big.Int), nil
}

// ExactInput simulates a multi-hop exact-input swap along an encoded path.
func (c *Client) ExactInput(ctx context.Context, params uniswapv3.ExactInputParams) (*big.Int, error) {
	if c.v3Router == nil {
		return nil, fmt.Errorf("%w: concentrated-liquidity", ErrVenueNotConfigured)
	}
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	call := struct {
		Path             []byte
		Recipient        common.Address
		Deadline         *big.Int
		AmountIn         *big.Int
		AmountOutMinimum *big.Int
	}{
		Path:             []byte(params.Path),
		Recipient:        params.Recipient,
		Deadline:         params.Deadline,
		AmountIn:         params.AmountIn,
		AmountOutMinimum: params.AmountOutMinimum,
	}

	var out []interface{}
	if err := c.v3Router.Call(opts, &out, "exactInput", call); err != nil {
		return nil, fmt.Errorf("exactInput call failed: %w", err)
	}
	return out[0].(*big.Int), nil
}

// PoolAddress resolves a pool id against the vault's registry, returning the
// zero address for unregistered ids. The vault reverts with BAL#500 rather
// than returning zero, so that revert is mapped here.
func (c *Client) PoolAddress(ctx context.Context, id balancerv2.PoolID) (common.Address, error) {
	if c.vault == nil {
		return common.Address{}, fmt.Errorf("%w: weighted-vault", ErrVenueNotConfigured)
	}
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	var out []interface{}
	if err := c.vault.Call(opts, &out, "getPool", [32]byte(id)); err != nil {
		if strings.Contains(err.Error(), "BAL#500") {
			return common.Address{}, nil
		}
		return common.Address{}, fmt.Errorf("getPool call failed: %w", err)
	}
	return out[0].(common.Address), nil
}

// PoolTokens returns the vault's registered token set for a pool id.
func (c *Client) PoolTokens(ctx context.Context, id balancerv2.PoolID) ([]common.Address, error) {
	if c.vault == nil {
		return nil, fmt.Errorf("%w: weighted-vault", ErrVenueNotConfigured)
	}
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	var out []interface{}
	if err := c.vault.Call(opts, &out, "getPoolTokens", [32]byte(id)); err != nil {
		return nil, fmt.Errorf("getPoolTokens call failed: %w", err)
	}
	return out[0].([]common.Address), nil
}

// vaultFunds and vaultBatchStep mirror the vault ABI tuples.
type vaultFunds struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

type vaultBatchStep struct {
	PoolId        [32]byte
	AssetInIndex  *big.Int
	AssetOutIndex *big.Int
	Amount        *big.Int
	UserData      []byte
}

func packFunds(funds balancerv2.FundManagement) vaultFunds {
	return vaultFunds{
		Sender:              funds.Sender,
		FromInternalBalance: funds.FromInternalBalance,
		Recipient:           funds.Recipient,
		ToInternalBalance:   funds.ToInternalBalance,
	}
}

// Swap simulates a single-pool swap through the vault.
func (c *Client) Swap(ctx context.Context, single balancerv2.SingleSwap, funds balancerv2.FundManagement, limit, deadline *big.Int) (*big.Int, error) {
	if c.vault == nil {
		return nil, fmt.Errorf("%w: weighted-vault", ErrVenueNotConfigured)
	}
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	call := struct {
		PoolId   [32]byte
		Kind     uint8
		AssetIn  common.Address
		AssetOut common.Address
		Amount   *big.Int
		UserData []byte
	}{
		PoolId:   [32]byte(single.PoolID),
		Kind:     uint8(single.Kind),
		AssetIn:  single.AssetIn,
		AssetOut: single.AssetOut,
		Amount:   single.Amount,
		UserData: single.UserData,
	}

	var out []interface{}
	if err := c.vault.Call(opts, &out, "swap", call, packFunds(funds), limit, deadline); err != nil {
		return nil, fmt.Errorf("swap call failed: %w", err)
	}
	return out[0].(*big.Int), nil
}

// BatchSwap simulates a multi-step swap through the vault and returns one
// signed net flow per asset.
func (c *Client) BatchSwap(ctx context.Context, kind balancerv2.SwapKind, steps []balancerv2.BatchSwapStep, assets []common.Address, funds balancerv2.FundManagement, limits []*big.Int, deadline *big.Int) ([]*big.Int, error) {
	if c.vault == nil {
		return nil, fmt.Errorf("%w: weighted-vault", ErrVenueNotConfigured)
	}
	opts, cancel := c.callOpts(ctx)
	defer cancel()

	callSteps := make([]vaultBatchStep, len(steps))
	for i, step := range steps {
		callSteps[i] = vaultBatchStep{
			PoolId:        [32]byte(step.PoolID),
			AssetInIndex:  big.NewInt(int64(step.AssetInIndex)),
			AssetOutIndex: big.NewInt(int64(step.AssetOutIndex)),
			Amount:        step.Amount,
			UserData:      step.UserData,
		}
	}

	var out []interface{}
	if err := c.vault.Call(opts, &out, "batchSwap", uint8(kind), callSteps, assets, packFunds(funds), limits, deadline); err != nil {
		return nil, fmt.Errorf("batchSwap call failed: %w", err)
	}

	deltas := out[0].([]*big.Int)
	c.logger.Debug("Simulated batch swap",
		"steps", len(steps),
		"assets", len(assets),
	)
	return deltas, nil
}

// The client serves every venue collaborator the adapters need.
var (
	_ uniswapv2.PairSource     = (*Client)(nil)
	_ uniswapv2.PathExecutor   = (*Client)(nil)
	_ uniswapv2.TokenApprover  = (*Client)(nil)
	_ uniswapv3.PoolSource     = (*Client)(nil)
	_ uniswapv3.SwapExecutor   = (*Client)(nil)
	_ balancerv2.PoolDirectory = (*Client)(nil)
	_ balancerv2.Vault         = (*Client)(nil)
)
