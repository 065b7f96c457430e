package reserve

import "errors"

var (
	// ErrExpired indicates the caller-supplied deadline elapsed before execution.
	ErrExpired = errors.New("reserve: transaction expired")
	// ErrSlippageExceeded indicates the computed amount violates the caller's bound.
	ErrSlippageExceeded = errors.New("reserve: slippage bound exceeded")
	// ErrCurveInversion indicates the inverse pricing walk did not terminate
	// within the iteration cap.
	ErrCurveInversion = errors.New("reserve: curve inversion did not converge")
	// ErrCurveAlreadyActive indicates an admin curve-parameter change after the
	// first purchase.
	ErrCurveAlreadyActive = errors.New("reserve: curve already active")
	// ErrCurveInactive indicates a price query before any units were sold.
	ErrCurveInactive = errors.New("reserve: no units sold yet")
	// ErrUnknownLoan indicates the slot is out of range or already redeemed.
	ErrUnknownLoan = errors.New("reserve: unknown or already closed loan")
	// ErrNotReadyToInflate indicates the trigger or cooldown gate blocked an inflate.
	ErrNotReadyToInflate = errors.New("reserve: not ready to inflate")
	// ErrNotReadyToDeflate indicates the trigger or cooldown gate blocked a deflate.
	ErrNotReadyToDeflate = errors.New("reserve: not ready to deflate")
	// ErrUnauthorized indicates the caller is not the configured owner identity.
	ErrUnauthorized = errors.New("reserve: caller is not the owner")
	// ErrInvalidAmount indicates a zero or negative amount argument.
	ErrInvalidAmount = errors.New("reserve: amount must be positive")
	// ErrInvalidDistribution indicates holder weights do not sum to 100%.
	ErrInvalidDistribution = errors.New("reserve: distribution weights must sum to 10000 bps")
	// ErrNotConfigured indicates a required collaborator has not been wired.
	ErrNotConfigured = errors.New("reserve: collaborator not configured")
)
