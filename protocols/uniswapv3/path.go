package uniswapv3

import (
	"fmt"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Standard concentrated-liquidity fee tiers, in hundredths of a bip.
const (
	FeeLowest uint32 = 100
	FeeLow    uint32 = 500
	FeeMedium uint32 = 3000
	FeeHigh   uint32 = 10000
)

const (
	// feeSize is the wire width of one fee tier. The venue packs fees as
	// 24-bit big-endian integers between consecutive token addresses.
	feeSize = 3

	// hopSize is one (fee, token) continuation after the first token.
	hopSize = common.AddressLength + feeSize

	// maxFee is the largest fee tier that fits the 3-byte wire encoding.
	maxFee = 1<<(feeSize*8) - 1
)

// Path is a venue-encoded multi-hop route:
//
//	token0 ‖ fee0 ‖ token1 ‖ fee1 ‖ … ‖ tokenN
//
// The bytes are replayed verbatim to the venue router at swap time; decoding
// exists for introspection only. An empty Path means "direct pool": the route
// is expressed by a single fee tier instead.
type Path []byte

// IsDirect reports whether the route uses the single fee-tier form.
func (p Path) IsDirect() bool {
	return len(p) == 0
}

// Pools returns the number of pools the path crosses, zero for a direct path.
func (p Path) Pools() int {
	if len(p) < common.AddressLength {
		return 0
	}
	return (len(p) - common.AddressLength) / hopSize
}

func (p Path) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(p)), nil
}

func (p *Path) UnmarshalText(text []byte) error {
	raw, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("%w: path is not hex: %v", engine.ErrInvalidInput, err)
	}
	*p = raw
	return nil
}

// EncodePath packs an ordered token sequence and its per-pool fees into the
// venue's path encoding. Fees must carry exactly one entry per consecutive
// token pair and fit 24 bits.
func EncodePath(tokens []common.Address, fees []uint32) (Path, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("%w: path needs at least two tokens, got %d", engine.ErrInvalidInput, len(tokens))
	}
	if len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("%w: %d tokens need %d fees, got %d", engine.ErrInvalidInput, len(tokens), len(tokens)-1, len(fees))
	}

	path := make(Path, 0, common.AddressLength+len(fees)*hopSize)
	for i, fee := range fees {
		if fee > maxFee {
			return nil, fmt.Errorf("%w: fee %d exceeds the 24-bit wire encoding", engine.ErrInvalidInput, fee)
		}
		path = append(path, tokens[i].Bytes()...)
		path = append(path, byte(fee>>16), byte(fee>>8), byte(fee))
	}
	path = append(path, tokens[len(tokens)-1].Bytes()...)
	return path, nil
}

// DecodePath is the exact inverse of EncodePath.
func DecodePath(path Path) ([]common.Address, []uint32, error) {
	if len(path) < common.AddressLength+hopSize {
		return nil, nil, fmt.Errorf("%w: encoded path is %d bytes, want at least %d", engine.ErrInvalidInput, len(path), common.AddressLength+hopSize)
	}
	if (len(path)-common.AddressLength)%hopSize != 0 {
		return nil, nil, fmt.Errorf("%w: encoded path length %d is not token-fee aligned", engine.ErrInvalidInput, len(path))
	}

	pools := path.Pools()
	tokens := make([]common.Address, 0, pools+1)
	fees := make([]uint32, 0, pools)

	tokens = append(tokens, common.BytesToAddress(path[:common.AddressLength]))
	for i := 0; i < pools; i++ {
		offset := common.AddressLength + i*hopSize
		fee := uint32(path[offset])<<16 | uint32(path[offset+1])<<8 | uint32(path[offset+2])
		fees = append(fees, fee)
		tokens = append(tokens, common.BytesToAddress(path[offset+feeSize:offset+hopSize]))
	}
	return tokens, fees, nil
}
