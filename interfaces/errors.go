package interfaces

import "errors"

// Error taxonomy. Components wrap one of these so callers can classify a
// failure with errors.Is regardless of the underlying cause.
var (
	// ErrValidation marks malformed input: bad addresses, empty salts,
	// out-of-range decimals. Raised before any network call.
	ErrValidation = errors.New("validation error")

	// ErrPrecondition marks a missing required input such as the deployer key.
	ErrPrecondition = errors.New("precondition failed")

	// ErrConfirmation is returned when a submitted transaction was not
	// confirmed in time or its receipt could not be fetched.
	ErrConfirmation = errors.New("transaction not confirmed")

	// ErrReverted is returned when a transaction was mined with a failed status.
	ErrReverted = errors.New("transaction reverted")

	// ErrEventNotFound is returned when an expected event is absent from a receipt.
	ErrEventNotFound = errors.New("event not found in receipt")

	// ErrNoTransactOpts is returned when a write is attempted without a signer.
	ErrNoTransactOpts = errors.New("no authorized transactor available")
)
