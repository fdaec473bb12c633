package router

import (
	"context"
	"math/big"

	"github.com/defistate/defistate-router-go/engine"
	"github.com/ethereum/go-ethereum/common"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Adapter is one venue behind the router. BuildRoute validates a token
// sequence against live venue state and produces the storable payload;
// Execute replays a stored payload as a swap.
//
// CONTRACT: Execute must propagate venue failures unchanged (wrapped as
// engine.DependencyError) and must never retry. Deadline and minimum-output
// enforcement belong to the venue.
type Adapter interface {
	Backend() engine.Backend
	BuildRoute(ctx context.Context, tokens []common.Address, params engine.RouteParams) (engine.RouteConfig, error)
	Execute(ctx context.Context, cfg engine.RouteConfig, req engine.SwapRequest) (*big.Int, error)
}
