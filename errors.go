package btree

import "errors"

var (
	// ErrInvalidConfig signals an invalid tree configuration.
	ErrInvalidConfig = errors.New("btree: invalid configuration")
	// ErrInvariantViolation is returned by the opt-in structural validator.
	ErrInvariantViolation = errors.New("btree: structural invariant violated")
	// ErrBuilderCompleted signals that a builder has already produced its tree
	// and it is illegal to append further elements.
	ErrBuilderCompleted = errors.New("btree: builder has been completed")
	// ErrKeysUnsorted signals out-of-order input to a sorted bulk load.
	ErrKeysUnsorted = errors.New("btree: keys not in ascending order")
)
