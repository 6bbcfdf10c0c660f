package pool

import (
	"context"

	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/invariant"
	"github.com/alfredgw/connpool/transport"
)

// Client is what Base operates on, regardless of protocol. Protocol
// specializations (pool/http1.Client, pool/tcp.Client) hold an
// *ActiveClient for the shared state machine and implement the remainder
// themselves — composition in place of the source's single-inheritance
// hierarchy.
type Client interface {
	// Base returns the embedded generic state machine so Base can drive
	// transitions and capacity accounting without knowing the concrete
	// protocol type.
	Base() *ActiveClient

	// NumActiveStreams is protocol-specific: HTTP/1 is 0 or 1 depending on
	// whether a stream wrapper is attached; TCP is 0 or 1 depending on
	// whether upstream callbacks are attached.
	NumActiveStreams() uint32

	// CurrentUnusedCapacity is current_unused_capacity computed against
	// this client's NumActiveStreams; concrete types implement this as a
	// one-line forward to Base().CurrentUnusedCapacity(c.NumActiveStreams()).
	CurrentUnusedCapacity() int64

	// SupportsEarlyData reports whether this client can ever reach
	// ReadyForEarlyData. HTTP/1 never does.
	SupportsEarlyData() bool

	// Connect dials/establishes the underlying connection.
	Connect(ctx context.Context) error

	// Close tears down the underlying connection (and any protocol-specific
	// resource, e.g. an HTTP/1 codec client).
	Close(closeType transport.CloseType)
}

// resourceExtender is implemented by protocol specializations that need to
// do extra work the first (and only) time ReleaseResources runs. HTTP/1's
// implementation is a no-op: its stream wrapper is not released or deferred
// for deletion there.
type resourceExtender interface {
	ExtendReleaseResources()
}

// ActiveClient is the shared state machine: one upstream connection's
// lifecycle, remaining-stream budget, concurrent-stream budget, and
// capacity bookkeeping (spec §4.3).
type ActiveClient struct {
	realHostDescription host.Description
	connection           transport.ClientConnection

	state ClientState

	remainingStreams      uint32
	concurrentStreamLimit uint32
	configuredStreamLimit uint32

	resourcesReleased   bool
	timedOut            bool
	handshakeCompleted  bool
}

// NewActiveClient constructs the shared state machine. lifetimeStreamLimit
// and concurrentStreamLimit are translated 0→unlimited once here, along
// with effectiveConcurrentStreams (kept as configuredStreamLimit for parity
// with the source's separate property — see SPEC_FULL.md §9).
func NewActiveClient(h host.Description, lifetimeStreamLimit, concurrentStreamLimit, effectiveConcurrentStreams uint32) *ActiveClient {
	return &ActiveClient{
		realHostDescription:  h,
		state:                Connecting,
		remainingStreams:     translateZeroToUnlimited(lifetimeStreamLimit),
		concurrentStreamLimit: translateZeroToUnlimited(concurrentStreamLimit),
		configuredStreamLimit: translateZeroToUnlimited(effectiveConcurrentStreams),
	}
}

// State returns the client's current lifecycle state.
func (c *ActiveClient) State() ClientState { return c.state }

// RemainingStreams returns the lifetime-stream budget left.
func (c *ActiveClient) RemainingStreams() uint32 { return c.remainingStreams }

// ConcurrentStreamLimit returns the live concurrent-stream ceiling.
func (c *ActiveClient) ConcurrentStreamLimit() uint32 { return c.concurrentStreamLimit }

// ConfiguredStreamLimit returns the translated effective-concurrent-streams
// value recorded at construction (diagnostic parity with the source; see
// SPEC_FULL.md §9).
func (c *ActiveClient) ConfiguredStreamLimit() uint32 { return c.configuredStreamLimit }

// HandshakeCompleted reports whether the connection has completed its
// handshake (for a plain TCP tunnel this is "connected"; kept named to
// match the boundary the spec draws for TLS-capable protocols too).
func (c *ActiveClient) HandshakeCompleted() bool { return c.handshakeCompleted }

// TimedOut reports whether on_connect_timeout fired for this client.
func (c *ActiveClient) TimedOut() bool { return c.timedOut }

// RealHostDescription returns the owning host.
func (c *ActiveClient) RealHostDescription() host.Description { return c.realHostDescription }

// Connection returns the underlying transport connection, if dialed.
func (c *ActiveClient) Connection() transport.ClientConnection { return c.connection }

// SetConnection records the dialed connection; called once by the protocol
// specialization right after Connect succeeds.
func (c *ActiveClient) SetConnection(conn transport.ClientConnection) { c.connection = conn }

// EffectiveConcurrentStreamLimit is min(remaining_streams,
// concurrent_stream_limit).
func (c *ActiveClient) EffectiveConcurrentStreamLimit() uint32 {
	return minU32(c.remainingStreams, c.concurrentStreamLimit)
}

// currentUnusedCapacity is min(remaining_streams, concurrent_stream_limit -
// num_active_streams), clamped so it's never reported negative even if a
// caller transiently overshoots active streams (mirrors the i64 capacity
// counters' tolerance of transient overshoot elsewhere in the pool).
func (c *ActiveClient) currentUnusedCapacity(numActiveStreams uint32) int64 {
	headroom := int64(c.concurrentStreamLimit) - int64(numActiveStreams)
	cap := minI64(int64(c.remainingStreams), headroom)
	if cap < 0 {
		return 0
	}
	return cap
}

// CurrentUnusedCapacity exposes currentUnusedCapacity for callers (tests,
// Base) holding a bare *ActiveClient plus an externally-known active-stream
// count; concrete Client implementations should prefer their own
// CurrentUnusedCapacity() method which threads NumActiveStreams() through
// automatically.
func (c *ActiveClient) CurrentUnusedCapacity(numActiveStreams uint32) int64 {
	return c.currentUnusedCapacity(numActiveStreams)
}

// decRemainingStreams debits n from the lifetime-stream budget, used by
// Base.attachStreamToClient.
func (c *ActiveClient) decRemainingStreams(n uint32) {
	if c.remainingStreams >= n {
		c.remainingStreams -= n
	} else {
		c.remainingStreams = 0
	}
}

// MarkHandshakeCompleted flips handshakeCompleted; idempotent.
func (c *ActiveClient) MarkHandshakeCompleted() { c.handshakeCompleted = true }

// MarkTimedOut flips timedOut; used by on_connect_timeout.
func (c *ActiveClient) MarkTimedOut() { c.timedOut = true }

// zeroRemainingStreams is used on the Draining and close-on-failure paths.
func (c *ActiveClient) zeroRemainingStreams() { c.remainingStreams = 0 }

// ForceDraining zeroes the lifetime-stream budget so the next
// Base.OnStreamClosed transitions this client to Draining and tears it
// down instead of returning it to Ready. Exported for protocol
// specializations that detect a mandatory close from wire state the pool
// core can't see itself — e.g. HTTP/1's Connection: close / HTTP/1.0
// detection (§4.6).
func (c *ActiveClient) ForceDraining() { c.zeroRemainingStreams() }

// transitionTo records a raw state change; Base is responsible for only
// calling this along a legal edge of the table in spec §4.3, asserting
// otherwise (debug builds panic; release builds log and proceed, matching
// the source's release-mode no-op assert()).
func (c *ActiveClient) transitionTo(target ClientState) {
	invariant.Assert(legalTransition(c.state, target), "ActiveClient: illegal transition %s -> %s", c.state, target)
	c.state = target
}

func legalTransition(from, to ClientState) bool {
	if from == Closed {
		return false
	}
	if to == Closed {
		return true
	}
	switch from {
	case Connecting:
		return to == ReadyForEarlyData || to == Ready || to == Busy || to == Draining
	case ReadyForEarlyData:
		return to == Ready || to == Busy || to == Draining
	case Ready:
		return to == Busy || to == Draining
	case Busy:
		return to == Ready || to == Draining
	case Draining:
		return false
	}
	return false
}

// ReleaseResources runs exactly once per client. self is the outer
// protocol-specific Client (ActiveClient doesn't know its own wrapper);
// implementations that need to free extra state implement resourceExtender
// and get called after the base guard flips.
func (c *ActiveClient) ReleaseResources(self Client) {
	if c.resourcesReleased {
		return
	}
	c.resourcesReleased = true

	// TODO(conn-duration-metric): record this connection's total lifetime
	// once a duration-timer/metrics sink is wired; the original source
	// leaves the equivalent call (conn_length_->complete()) as a TODO too.

	if ext, ok := self.(resourceExtender); ok {
		ext.ExtendReleaseResources()
	}
}

// ResourcesReleased reports whether ReleaseResources has already run.
func (c *ActiveClient) ResourcesReleased() bool { return c.resourcesReleased }

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
