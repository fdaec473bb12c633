package pricing

import (
	"context"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Oracle quotes how much tokenOut one unit of tokenIn buys, as a WAD-scaled
// fixed-point ratio.
type Oracle interface {
	Price(ctx context.Context, tokenOut, tokenIn common.Address) (*uint256.Int, error)
}

// WAD is the fixed-point scale of oracle prices: 1e18 means "one".
var WAD = uint256.NewInt(1e18)

// BpsDenominator is the basis-point scale: 10000 means "everything".
const BpsDenominator = 10_000

// MinAmountOut converts amountIn through a WAD-scaled price and applies a
// slippage haircut in basis points:
//
//	minOut = amountIn * price / WAD * (10000 - slippageBps) / 10000
//
// The math saturates nowhere: any intermediate overflow is an error.
func MinAmountOut(amountIn *big.Int, price *uint256.Int, slippageBps uint16) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amountIn must be positive", engine.ErrInvalidInput)
	}
	if price == nil || price.IsZero() {
		return nil, fmt.Errorf("%w: price must be positive", engine.ErrInvalidInput)
	}
	if slippageBps > BpsDenominator {
		return nil, fmt.Errorf("%w: slippage %d bps exceeds %d", engine.ErrInvalidInput, slippageBps, BpsDenominator)
	}

	amount, overflow := uint256.FromBig(amountIn)
	if overflow {
		return nil, fmt.Errorf("%w: amountIn does not fit 256 bits", engine.ErrInvalidInput)
	}

	expected, overflow := new(uint256.Int).MulOverflow(amount, price)
	if overflow {
		return nil, fmt.Errorf("%w: amountIn * price overflows 256 bits", engine.ErrInvalidInput)
	}
	expected.Div(expected, WAD)

	keep := uint256.NewInt(uint64(BpsDenominator - slippageBps))
	minOut, overflow := new(uint256.Int).MulOverflow(expected, keep)
	if overflow {
		return nil, fmt.Errorf("%w: slippage haircut overflows 256 bits", engine.ErrInvalidInput)
	}
	minOut.Div(minOut, uint256.NewInt(BpsDenominator))

	return minOut.ToBig(), nil
}
