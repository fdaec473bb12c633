package uniswapv3

import (
	"encoding/json"
	"testing"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multiHopRoute(t *testing.T) Route {
	t.Helper()
	path, err := EncodePath([]common.Address{tokenA, tokenB, tokenC}, []uint32{FeeLow, FeeMedium})
	require.NoError(t, err)
	return Route{Path: path}
}

func TestRouteValidate(t *testing.T) {
	t.Run("should accept a direct route with a fee tier", func(t *testing.T) {
		assert.NoError(t, Route{Fee: FeeMedium}.Validate())
	})

	t.Run("should accept a well-formed multi-hop route", func(t *testing.T) {
		assert.NoError(t, multiHopRoute(t).Validate())
	})

	t.Run("should reject an empty route", func(t *testing.T) {
		assert.ErrorIs(t, Route{}.Validate(), engine.ErrInvalidInput)
	})

	t.Run("should reject a route carrying both forms", func(t *testing.T) {
		route := multiHopRoute(t)
		route.Fee = FeeMedium
		assert.ErrorIs(t, route.Validate(), engine.ErrInvalidInput)
	})

	t.Run("should reject an oversized fee tier", func(t *testing.T) {
		assert.ErrorIs(t, Route{Fee: 1 << 24}.Validate(), engine.ErrInvalidInput)
	})

	t.Run("should reject a structurally broken path", func(t *testing.T) {
		assert.ErrorIs(t, Route{Path: make(Path, 44)}.Validate(), engine.ErrInvalidInput)
	})
}

func TestRouteClone(t *testing.T) {
	t.Run("should not share path memory with the original", func(t *testing.T) {
		route := multiHopRoute(t)
		clone := route.Clone().(Route)

		clone.Path[0] ^= 0xFF
		assert.NotEqual(t, clone.Path[0], route.Path[0])
	})
}

func TestRouteEqual(t *testing.T) {
	t.Run("should compare fee and path bytes", func(t *testing.T) {
		assert.True(t, Route{Fee: FeeLow}.Equal(Route{Fee: FeeLow}))
		assert.True(t, multiHopRoute(t).Equal(multiHopRoute(t)))
		assert.False(t, Route{Fee: FeeLow}.Equal(Route{Fee: FeeMedium}))
		assert.False(t, Route{Fee: FeeLow}.Equal(multiHopRoute(t)))
		assert.False(t, Route{Fee: FeeLow}.Equal(nil))
	})
}

func TestDecodeRoute(t *testing.T) {
	t.Run("should round trip through JSON", func(t *testing.T) {
		route := multiHopRoute(t)
		raw, err := json.Marshal(route)
		require.NoError(t, err)

		decoded, err := DecodeRoute(raw)
		require.NoError(t, err)
		assert.True(t, route.Equal(decoded))
		assert.Equal(t, engine.BackendConcentratedLiquidity, decoded.Backend())
	})

	t.Run("should render the path as hex in JSON", func(t *testing.T) {
		raw, err := json.Marshal(multiHopRoute(t))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"path":"0x`)
	})
}

func TestRouteParamsReverse(t *testing.T) {
	t.Run("should flip the per-pool fee order", func(t *testing.T) {
		params := RouteParams{Fees: []uint32{FeeLow, FeeMedium, FeeHigh}}
		reversed := params.Reverse().(RouteParams)

		assert.Equal(t, []uint32{FeeHigh, FeeMedium, FeeLow}, reversed.Fees)
		assert.Equal(t, []uint32{FeeLow, FeeMedium, FeeHigh}, params.Fees)
	})

	t.Run("should keep an empty fee set empty", func(t *testing.T) {
		reversed := RouteParams{}.Reverse().(RouteParams)
		assert.Empty(t, reversed.Fees)
	})
}
