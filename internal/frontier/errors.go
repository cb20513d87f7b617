package frontier

import "errors"

var (
	// ErrNotDispatched rejects a completion for an identity that holds
	// no dispatch lease, either because it was never handed out or
	// because an earlier completion already consumed the lease.
	ErrNotDispatched = errors.New("frontier: completion for identity that is not dispatched")

	// ErrNoQueue and ErrNoLedger reject construction without the two
	// mandatory collaborators.
	ErrNoQueue  = errors.New("frontier: queue is required")
	ErrNoLedger = errors.New("frontier: ledger is required")
)
