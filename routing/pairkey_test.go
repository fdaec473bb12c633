package routing

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	dai  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
)

func TestDerivePairKey(t *testing.T) {
	t.Run("should be commutative", func(t *testing.T) {
		assert.Equal(t, DerivePairKey(weth, usdc), DerivePairKey(usdc, weth))
	})

	t.Run("should distinguish different pairs", func(t *testing.T) {
		assert.NotEqual(t, DerivePairKey(weth, usdc), DerivePairKey(weth, dai))
	})

	t.Run("should be deterministic", func(t *testing.T) {
		assert.Equal(t, DerivePairKey(weth, dai), DerivePairKey(weth, dai))
	})
}

func TestSortTokens(t *testing.T) {
	t.Run("should order by byte value regardless of argument order", func(t *testing.T) {
		first, second := SortTokens(weth, usdc)
		assert.Equal(t, usdc, first)
		assert.Equal(t, weth, second)

		first, second = SortTokens(usdc, weth)
		assert.Equal(t, usdc, first)
		assert.Equal(t, weth, second)
	})
}

func TestPairKeyText(t *testing.T) {
	t.Run("should round trip through hex", func(t *testing.T) {
		key := DerivePairKey(weth, usdc)
		text, err := key.MarshalText()
		require.NoError(t, err)

		var decoded PairKey
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, key, decoded)
	})

	t.Run("should reject malformed text", func(t *testing.T) {
		var key PairKey
		assert.Error(t, key.UnmarshalText([]byte("not-hex")))
		assert.Error(t, key.UnmarshalText([]byte("0x1234")))
	})
}

func BenchmarkDerivePairKey(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		DerivePairKey(weth, usdc)
	}
}
