// Package pool implements the generic upstream connection-pool core: the
// client state machine, the pending-stream queue, capacity accounting,
// preconnect, and draining. Protocol specializations (pool/http1,
// pool/tcp) plug into Base via the PoolOps and Client interfaces rather
// than through inheritance — composition replaces the source's
// GObject-style single-inheritance hierarchy per the design notes.
package pool

// ClientState is an ActiveClient's position in its lifecycle. Closed is
// terminal; ReadyForEarlyData is only reachable for clients whose Client
// implementation reports SupportsEarlyData() true.
type ClientState int

const (
	Connecting ClientState = iota
	ReadyForEarlyData
	Ready
	Busy
	Draining
	Closed
)

func (s ClientState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case ReadyForEarlyData:
		return "ready_for_early_data"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// FailureReason is surfaced to the router via AttachContext.OnPoolFailure.
type FailureReason int

const (
	Overflow FailureReason = iota
	LocalConnectionFailure
	RemoteConnectionFailure
	Timeout
)

func (r FailureReason) String() string {
	switch r {
	case Overflow:
		return "overflow"
	case LocalConnectionFailure:
		return "local_connection_failure"
	case RemoteConnectionFailure:
		return "remote_connection_failure"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// CreateConnectionResult is try_create_new_connection's outcome.
type CreateConnectionResult int

const (
	ShouldNotConnect CreateConnectionResult = iota
	NoConnectionRateLimited
	CreatedButRateLimited
	FailedToCreateConnection
	CreatedNewConnection
)

func (r CreateConnectionResult) String() string {
	switch r {
	case ShouldNotConnect:
		return "should_not_connect"
	case NoConnectionRateLimited:
		return "no_connection_rate_limited"
	case CreatedButRateLimited:
		return "created_but_rate_limited"
	case FailedToCreateConnection:
		return "failed_to_create_connection"
	case CreatedNewConnection:
		return "created_new_connection"
	default:
		return "unknown"
	}
}

// DrainBehavior selects how DrainConnections treats existing clients.
type DrainBehavior int

const (
	// DrainAndDelete marks the pool for deletion: close idle connections
	// now, let the rest drain naturally as their streams complete.
	DrainAndDelete DrainBehavior = iota
	// DrainExistingConnections closes idle connections now and puts every
	// other non-closed client on a path to Draining.
	DrainExistingConnections
)

// CancelPolicy selects PendingStream cancellation behavior.
type CancelPolicy int

const (
	// CancelDefault just dequeues the pending stream.
	CancelDefault CancelPolicy = iota
	// CancelCloseExcess additionally closes one excess connecting/early-data
	// client, per the formula in §4.4.
	CancelCloseExcess
)

const noTimeoutMax uint32 = 1<<32 - 1

// translateZeroToUnlimited treats a configured 0 as "unlimited", applied
// exactly once at ActiveClient construction to the lifetime limit, the
// concurrent-stream limit, and the configured effective-concurrent-streams
// value alike (see SPEC_FULL.md §9 for why all three, not just the first).
func translateZeroToUnlimited(limit uint32) uint32 {
	if limit == 0 {
		return noTimeoutMax
	}
	return limit
}
