package routing

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// PairKey is the canonical identifier of an unordered token pair.
type PairKey [32]byte

// DerivePairKey returns the same key for (a,b) and (b,a): the two addresses
// are sorted by byte order and their 40-byte concatenation is hashed with
// Keccak-256. Pure and total, no failure mode.
func DerivePairKey(tokenA, tokenB common.Address) PairKey {
	a, b := SortTokens(tokenA, tokenB)
	return PairKey(crypto.Keccak256Hash(a.Bytes(), b.Bytes()))
}

// SortTokens returns the two addresses in canonical byte-ascending order.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address) {
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		return tokenB, tokenA
	}
	return tokenA, tokenB
}

// Hex returns the 0x-prefixed hex encoding of the key.
func (k PairKey) Hex() string {
	return hexutil.Encode(k[:])
}

func (k PairKey) String() string {
	return k.Hex()
}

// MarshalText lets PairKey act as a JSON map key.
func (k PairKey) MarshalText() ([]byte, error) {
	return []byte(k.Hex()), nil
}

func (k *PairKey) UnmarshalText(text []byte) error {
	raw, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("pair key: %w", err)
	}
	if len(raw) != len(k) {
		return fmt.Errorf("pair key: expected %d bytes, got %d", len(k), len(raw))
	}
	copy(k[:], raw)
	return nil
}
