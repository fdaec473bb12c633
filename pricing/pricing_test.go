package pricing

import (
	"math/big"
	"testing"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wad(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), WAD)
}

func TestMinAmountOut(t *testing.T) {
	t.Run("should pass the amount through at a unit price with no slippage", func(t *testing.T) {
		out, err := MinAmountOut(big.NewInt(10_000), wad(1), 0)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(10_000), out)
	})

	t.Run("should scale the amount by the price", func(t *testing.T) {
		out, err := MinAmountOut(big.NewInt(10_000), wad(2), 0)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(20_000), out)
	})

	t.Run("should apply the slippage haircut in basis points", func(t *testing.T) {
		out, err := MinAmountOut(big.NewInt(10_000), wad(1), 50)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(9_950), out)
	})

	t.Run("should handle fractional prices", func(t *testing.T) {
		half := new(uint256.Int).Div(WAD, uint256.NewInt(2))
		out, err := MinAmountOut(big.NewInt(10_000), half, 0)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(5_000), out)
	})

	t.Run("should tolerate a full haircut", func(t *testing.T) {
		out, err := MinAmountOut(big.NewInt(10_000), wad(1), BpsDenominator)
		require.NoError(t, err)
		assert.Zero(t, out.Sign())
	})

	t.Run("should reject a non-positive amount", func(t *testing.T) {
		_, err := MinAmountOut(nil, wad(1), 0)
		assert.ErrorIs(t, err, engine.ErrInvalidInput)

		_, err = MinAmountOut(big.NewInt(0), wad(1), 0)
		assert.ErrorIs(t, err, engine.ErrInvalidInput)

		_, err = MinAmountOut(big.NewInt(-5), wad(1), 0)
		assert.ErrorIs(t, err, engine.ErrInvalidInput)
	})

	t.Run("should reject a zero price", func(t *testing.T) {
		_, err := MinAmountOut(big.NewInt(100), uint256.NewInt(0), 0)
		assert.ErrorIs(t, err, engine.ErrInvalidInput)
	})

	t.Run("should reject slippage beyond the denominator", func(t *testing.T) {
		_, err := MinAmountOut(big.NewInt(100), wad(1), BpsDenominator+1)
		assert.ErrorIs(t, err, engine.ErrInvalidInput)
	})

	t.Run("should reject an amount that overflows 256 bits", func(t *testing.T) {
		huge := new(big.Int).Lsh(big.NewInt(1), 260)
		_, err := MinAmountOut(huge, wad(1), 0)
		assert.ErrorIs(t, err, engine.ErrInvalidInput)
	})

	t.Run("should reject a product that overflows 256 bits", func(t *testing.T) {
		nearMax := new(big.Int).Lsh(big.NewInt(1), 255)
		_, err := MinAmountOut(nearMax, wad(1_000_000), 0)
		assert.ErrorIs(t, err, engine.ErrInvalidInput)
	})
}
