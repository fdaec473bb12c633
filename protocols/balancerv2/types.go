package balancerv2

import (
	"fmt"
	"math/big"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PoolID is the vault's 32-byte pool identifier.
type PoolID [32]byte

func (id PoolID) IsZero() bool {
	return id == PoolID{}
}

func (id PoolID) Hex() string {
	return hexutil.Encode(id[:])
}

func (id PoolID) String() string {
	return id.Hex()
}

func (id PoolID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *PoolID) UnmarshalText(text []byte) error {
	raw, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("%w: pool id is not hex: %v", engine.ErrInvalidInput, err)
	}
	if len(raw) != len(id) {
		return fmt.Errorf("%w: pool id is %d bytes, want %d", engine.ErrInvalidInput, len(raw), len(id))
	}
	copy(id[:], raw)
	return nil
}

// SwapKind selects the vault's amount convention.
type SwapKind uint8

const (
	// SwapKindGivenIn fixes the input amount; the vault computes the output.
	SwapKindGivenIn SwapKind = iota
	SwapKindGivenOut
)

// SingleSwap mirrors the vault's single-swap call shape.
type SingleSwap struct {
	PoolID   PoolID
	Kind     SwapKind
	AssetIn  common.Address
	AssetOut common.Address
	Amount   *big.Int
	UserData []byte
}

// BatchSwapStep mirrors one step of the vault's batch-swap call shape.
// Amount zero means "consume the entire output of the previous step".
type BatchSwapStep struct {
	PoolID        PoolID
	AssetInIndex  int
	AssetOutIndex int
	Amount        *big.Int
	UserData      []byte
}

// FundManagement tells the vault where to pull input funds from and where to
// deliver output funds.
type FundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}
