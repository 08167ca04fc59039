package store

import "errors"

// Sentinel errors for store operations. Explicit errors instead of
// nil, nil returns, consistent across every repository in this package.
var (
	// ErrSwapNotFound is returned when a swap record does not exist.
	ErrSwapNotFound = errors.New("store: swap not found")

	// ErrDuplicateSwap is returned by Create when (direction, nonce)
	// already has a record — the unique-index collision is expected
	// when two observers race to record the same on-chain event.
	ErrDuplicateSwap = errors.New("store: swap already recorded for this direction and nonce")

	// ErrDuplicateSignature is returned by Insert when
	// (swap_id, signer) already has a row.
	ErrDuplicateSignature = errors.New("store: signature already recorded for this swap and signer")

	// ErrInvalidTransition is returned when a status update would
	// violate the swap status DAG (no regress, FAILED only from a
	// non-terminal state).
	ErrInvalidTransition = errors.New("store: invalid swap status transition")

	// ErrCheckpointNotFound means no checkpoint has ever been saved.
	ErrCheckpointNotFound = errors.New("store: checkpoint not found")
)
