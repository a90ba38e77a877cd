package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Inference errors
var (
	// ErrInvalidReference: a query or evidence name is not a network variable,
	// or an evidence value is outside the variable's domain.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrOrderMismatch: an explicit elimination order is not exactly the set of
	// variables that must be eliminated.
	ErrOrderMismatch = errors.New("elimination order mismatch")

	// ErrStructural: a factor or network violates a layout invariant.
	ErrStructural = errors.New("structural violation")

	// ErrDegenerateNormalization: the factor being normalized sums to zero.
	ErrDegenerateNormalization = errors.New("degenerate normalization")
)
