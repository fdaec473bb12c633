package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed configuration or request
	// arguments: length mismatches, too-few tokens, nil amounts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPoolNotFound is returned when a referenced backend pool does not exist.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrInvalidPoolMembership is returned when a connector token is not a
	// member of both pools it is supposed to join in a batch route.
	ErrInvalidPoolMembership = errors.New("invalid pool membership")
	// ErrBackendResponseMismatch is returned when a venue answers with a shape
	// violating its contract, e.g. a per-hop amount array of the wrong length.
	ErrBackendResponseMismatch = errors.New("backend response mismatch")
	// ErrAmountInMismatch is returned when a batch swap's realized net inflow
	// for the input asset differs from the requested amountIn.
	ErrAmountInMismatch = errors.New("amount in mismatch")
	// ErrInvalidBatchOutput is returned when a batch swap's realized net flow
	// for the output asset is not an outflow.
	ErrInvalidBatchOutput = errors.New("invalid batch output")
	// ErrUnsupportedBackend is returned when a route resolves to a backend with
	// no adapter wired. This is a deployment wiring defect, never expected in
	// correct configurations.
	ErrUnsupportedBackend = errors.New("unsupported backend")
)

// DependencyError is returned when an external collaborator the engine
// depends on fails: RPC transport errors, venue reverts (deadline elapsed,
// output under the minimum), approval failures. Inspect the cause with
// errors.As / Unwrap.
type DependencyError struct {
	// Dependency names the collaborator that failed, e.g. "v2 router".
	Dependency string
	// Err is the underlying error returned by the collaborator.
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %q failed: %v", e.Dependency, e.Err)
}

// Unwrap allows the error to be inspected with errors.Is and errors.As.
func (e *DependencyError) Unwrap() error {
	return e.Err
}

func wrapInvalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
