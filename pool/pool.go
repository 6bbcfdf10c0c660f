package pool

import (
	"context"

	"github.com/alfredgw/connpool/dispatcher"
	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/invariant"
	"github.com/alfredgw/connpool/transport"
)

// Base is the generic connection-pool core: one Base per (host, priority)
// pair. Protocol specializations own a Base and a PoolOps implementation;
// Base drives the client state machine, the pending-stream queue, capacity
// accounting, and preconnect, all single-threaded against dispatcher —
// no locks here, matching the source's single-threaded-per-worker design.
type Base struct {
	host       host.Host
	dispatcher *dispatcher.Dispatcher
	ops        PoolOps

	clients []Client
	pending *pendingQueue

	upstreamReady *dispatcher.Handle

	deleting bool
}

// NewBase constructs a Base bound to h, scheduling its housekeeping through
// d. ops supplies the protocol-specific behavior.
func NewBase(h host.Host, d *dispatcher.Dispatcher, ops PoolOps) *Base {
	b := &Base{
		host:       h,
		dispatcher: d,
		ops:        ops,
		pending:    newPendingQueue(),
	}
	b.upstreamReady = d.CreateSchedulableCallback(b.onUpstreamReady)
	return b
}

// Host returns the owning host.
func (b *Base) Host() host.Host { return b.host }

// IsDeleting reports whether DrainConnections(DrainAndDelete) has run.
func (b *Base) IsDeleting() bool { return b.deleting }

// NewStream is the pool's single entry point for new work (§4.5.1). A
// ready (or early-data-capable) client is attached to without a
// pending-requests check — that gate only applies to the path that has to
// queue the stream and wait for a connection; attachStreamToClient still
// applies its own requests gate and may fail ctx with Overflow. Returns a
// cancellable handle, or nil if ctx was already serviced or failed
// synchronously.
func (b *Base) NewStream(ctx AttachContext, canSendEarlyData bool) *PendingStream {
	if b.deleting {
		ctx.OnPoolFailure(LocalConnectionFailure)
		return nil
	}

	if client := b.pickReadyClient(canSendEarlyData); client != nil {
		b.attachStreamToClient(client, newPendingStream(ctx, canSendEarlyData))
		b.tryCreateNewConnections()
		return nil
	}

	rm := b.host.Cluster().ResourceManager(b.host.Priority())
	if !rm.PendingRequests().CanCreate() {
		ctx.OnPoolFailure(Overflow)
		return nil
	}

	p := newPendingStream(ctx, canSendEarlyData)
	rm.PendingRequests().Inc()
	b.pending.pushBack(p)

	if result := b.tryCreateNewConnections(); result == FailedToCreateConnection {
		b.CancelPendingStream(p, CancelCloseExcess)
		ctx.OnPoolFailure(LocalConnectionFailure)
		return nil
	}
	return p
}

// pickReadyClient returns the first client able to serve a new stream right
// now: a Ready client, or (when the caller tolerates early data) a
// ReadyForEarlyData client with spare capacity.
func (b *Base) pickReadyClient(canSendEarlyData bool) Client {
	for _, c := range b.clients {
		base := c.Base()
		switch base.State() {
		case Ready:
			if c.CurrentUnusedCapacity() > 0 {
				return c
			}
		case ReadyForEarlyData:
			if canSendEarlyData && c.SupportsEarlyData() && c.CurrentUnusedCapacity() > 0 {
				return c
			}
		}
	}
	return nil
}

// attachStreamToClient binds a pending stream to client (§4.5.3): the
// max-requests/Overflow gate is checked first, before any state mutation,
// and a refusal is reported to p.ctx with the reason only (no host
// description is passed along); only then does it debit the
// lifetime-stream budget, flip Ready->Busy/Draining, and invoke the
// protocol hook. Capacity for the Busy decision is read before the debit,
// matching attach_stream_to_client's ordering — it answers "was this the
// last slot", not "is there a slot left now". Callers that popped p off
// b.pending are responsible for its pending-requests bookkeeping; this
// function never touches that counter, matching the source (attach_stream_
// to_client has no pending-stream concept at all).
func (b *Base) attachStreamToClient(client Client, p *PendingStream) {
	rm := b.host.Cluster().ResourceManager(b.host.Priority())
	if !rm.Requests().CanCreate() {
		p.ctx.OnPoolFailure(Overflow)
		return
	}

	base := client.Base()
	capacity := client.CurrentUnusedCapacity()
	earlyData := base.State() == ReadyForEarlyData

	base.decRemainingStreams(1)
	if base.RemainingStreams() == 0 {
		base.transitionTo(Draining)
	} else if capacity == 1 {
		base.transitionTo(Busy)
	}

	rm.Requests().Inc()
	b.ops.OnPoolReady(client, p.ctx, earlyData && p.canSendEarlyData)
}

// CancelPendingStream removes p from the queue. CancelCloseExcess
// additionally closes one excess connecting/early-data client, per the
// formula in §4.4: a client is "excess" once the number of
// connecting-or-early-data clients exceeds what preconnect would want plus
// one for the stream actually being attached.
func (b *Base) CancelPendingStream(p *PendingStream, policy CancelPolicy) {
	if p == nil {
		return
	}
	b.pending.remove(p)
	b.host.Cluster().ResourceManager(b.host.Priority()).PendingRequests().Dec()

	if policy == CancelCloseExcess {
		if excess := b.findExcessConnectingClient(); excess != nil {
			b.closeClient(excess, transport.CloseNoFlush)
		}
	}
}

// findExcessConnectingClient returns a Connecting/ReadyForEarlyData client
// to close when the number of such clients now exceeds pending demand,
// newest first (the one least likely to have already made progress).
func (b *Base) findExcessConnectingClient() Client {
	var candidate Client
	for _, c := range b.clients {
		s := c.Base().State()
		if s != Connecting && s != ReadyForEarlyData {
			continue
		}
		candidate = c
	}
	if candidate == nil {
		return nil
	}
	connectingOrEarly := 0
	for _, c := range b.clients {
		s := c.Base().State()
		if s == Connecting || s == ReadyForEarlyData {
			connectingOrEarly++
		}
	}
	if connectingOrEarly > b.pending.len()+1 {
		return candidate
	}
	return nil
}

// shouldConnect is should_connect from §4.5.2, verbatim:
// (pending + active + anticipated) * ratio > capacity + active.
func shouldConnect(pending, active, capacity int64, ratio float32, anticipate bool) bool {
	anticipated := int64(0)
	if anticipate {
		anticipated = 1
	}
	want := float64(pending+active+anticipated) * float64(ratio)
	return want > float64(capacity+active)
}

// currentActiveStreamCapacity sums current_unused_capacity across every
// non-closed client. Recomputed on demand rather than tracked incrementally
// — simpler to keep correct at this repo's scale, and avoids a whole class
// of drift bugs the running-counter approach is prone to.
func (b *Base) currentActiveStreamCapacity() int64 {
	var total int64
	for _, c := range b.clients {
		if c.Base().State() == Closed || c.Base().State() == Draining {
			continue
		}
		total += c.CurrentUnusedCapacity()
	}
	return total
}

func (b *Base) numActiveStreams() int64 {
	var total int64
	for _, c := range b.clients {
		total += int64(c.NumActiveStreams())
	}
	return total
}

// tryCreateNewConnection is a single attempt at try_create_new_connection
// (§4.5.2): ratio 0 means "use the cluster's configured per-upstream ratio,
// anticipate=false"; any other ratio is used literally with anticipate=true.
// A host that refuses the connection is still honored once, to bootstrap a
// pool that would otherwise starve with zero clients — matching the
// source's can_create_connection-or-no-existing-clients escape hatch.
func (b *Base) tryCreateNewConnection(ratio float32) CreateConnectionResult {
	anticipate := ratio != 0
	effectiveRatio := ratio
	if !anticipate {
		effectiveRatio = b.host.Cluster().PerUpstreamPreconnectRatio()
	}

	pending := int64(b.pending.len())
	active := b.numActiveStreams()
	capacity := b.currentActiveStreamCapacity()
	if !shouldConnect(pending, active, capacity, effectiveRatio, anticipate) {
		return ShouldNotConnect
	}

	rm := b.host.Cluster().ResourceManager(b.host.Priority())
	if !rm.ConnectionPools().CanCreate() {
		return NoConnectionRateLimited
	}

	canCreateConnection := b.host.CanCreateConnection(b.host.Priority())
	if !canCreateConnection && len(b.clients) > 0 {
		return NoConnectionRateLimited
	}

	client, err := b.ops.InstantiateActiveClient()
	if err != nil {
		return FailedToCreateConnection
	}
	if err := client.Connect(context.Background()); err != nil {
		return FailedToCreateConnection
	}

	rm.ConnectionPools().Inc()
	b.clients = append(b.clients, client)

	if !canCreateConnection {
		return CreatedButRateLimited
	}
	rm.Connections().Inc()
	return CreatedNewConnection
}

// tryCreateNewConnections is the plural try_create_new_connections: it
// always calls tryCreateNewConnection with the literal ratio 1.0 (not the
// cluster's configured ratio), up to three times, stopping as soon as a
// call doesn't return CreatedNewConnection. This is the loop NewStream and
// the immediate-attach paths actually drive; MaybePreconnect below is the
// only caller that still gets to pick its own ratio.
func (b *Base) tryCreateNewConnections() CreateConnectionResult {
	var last CreateConnectionResult = ShouldNotConnect
	for i := 0; i < 3; i++ {
		last = b.tryCreateNewConnection(1.0)
		if last != CreatedNewConnection {
			return last
		}
	}
	return last
}

// MaybePreconnect is the externally-triggered preconnect hook, matching
// maybe_preconnect_impl in the source: a single attempt at the caller's
// chosen ratio, not the three-attempt literal-1.0 loop.
func (b *Base) MaybePreconnect(ratio float32) bool {
	return b.tryCreateNewConnection(ratio) == CreatedNewConnection
}

// OnConnectionEvent is the ClientConnection event sink a protocol
// specialization forwards to once it owns a dialed connection.
func (b *Base) OnConnectionEvent(client Client, event transport.Event) {
	base := client.Base()
	switch event {
	case transport.EventConnected, transport.EventConnectedZeroRTT:
		base.MarkHandshakeCompleted()
		target := Ready
		if event == transport.EventConnectedZeroRTT && client.SupportsEarlyData() {
			target = ReadyForEarlyData
		}
		base.transitionTo(target)
		b.scheduleUpstreamReady()

	case transport.EventLocalClose, transport.EventRemoteClose:
		handshakeCompleted := base.HandshakeCompleted()
		b.removeClient(client)
		if !handshakeCompleted {
			reason := LocalConnectionFailure
			if event == transport.EventRemoteClose {
				reason = RemoteConnectionFailure
			}
			b.purgePendingStreams(reason)
		}
		client.Base().ReleaseResources(client)
	}
}

// scheduleUpstreamReady defers the attach-queued-streams sweep to the
// dispatcher's current-iteration callback (§5): on_upstream_ready must
// never run synchronously from inside a connection-event or
// stream-closed handler, to avoid reentering Base while a client's own
// completion handler is still unwinding.
func (b *Base) scheduleUpstreamReady() {
	b.upstreamReady.ScheduleCallbackCurrentIteration()
}

// onUpstreamReady drains the pending queue into ready clients, FIFO,
// oldest stream first, one client at a time, and tops up with a preconnect
// pass if anything is still waiting once no ready client remains.
func (b *Base) onUpstreamReady() {
	rm := b.host.Cluster().ResourceManager(b.host.Priority())
	for b.pending.len() > 0 {
		client := b.firstReadyClient()
		if client == nil {
			break
		}
		p := b.pending.popFront()
		if p == nil {
			break
		}
		rm.PendingRequests().Dec()
		b.attachStreamToClient(client, p)
	}

	if b.pending.len() > 0 {
		b.tryCreateNewConnections()
	}
}

// firstReadyClient returns the first Ready client with spare capacity.
// Concrete clients in this repo never report SupportsEarlyData true, so
// ReadyForEarlyData clients never actually reach this scan in practice;
// the state still exists in the transition table for protocols that could.
func (b *Base) firstReadyClient() Client {
	for _, c := range b.clients {
		if c.Base().State() == Ready && c.CurrentUnusedCapacity() > 0 {
			return c
		}
	}
	return nil
}

// purgePendingStreams fails every pending stream unconditionally once a
// client's connection closes before its handshake ever completed — the
// source purges the whole queue on every such failure, not just when no
// other connecting client remains, since there is no retry/backoff policy
// here for a caller to wait on (Non-goal).
func (b *Base) purgePendingStreams(reason FailureReason) {
	for {
		p := b.pending.popFront()
		if p == nil {
			return
		}
		b.host.Cluster().ResourceManager(b.host.Priority()).PendingRequests().Dec()
		p.ctx.OnPoolFailure(reason)
	}
}

// OnStreamClosed is called by a protocol specialization once a stream on
// client finishes, returning a Busy client to Ready (or, mid-drain, closing
// it instead) and scheduling the next queued stream for attachment.
func (b *Base) OnStreamClosed(client Client) {
	base := client.Base()
	rm := b.host.Cluster().ResourceManager(b.host.Priority())
	rm.Requests().Dec()

	if base.State() == Draining {
		if client.NumActiveStreams() == 0 {
			b.closeClient(client, transport.CloseNoFlush)
		}
		return
	}

	if base.RemainingStreams() == 0 {
		base.transitionTo(Draining)
		if client.NumActiveStreams() == 0 {
			b.closeClient(client, transport.CloseNoFlush)
		}
		return
	}

	if base.State() == Busy {
		base.transitionTo(Ready)
	}
	b.scheduleUpstreamReady()
}

// closeClient tears down client unconditionally, updates resource
// counters, and removes it from the client list.
func (b *Base) closeClient(client Client, closeType transport.CloseType) {
	client.Close(closeType)
	b.removeClient(client)
	client.Base().ReleaseResources(client)
}

func (b *Base) removeClient(client Client) {
	for i, c := range b.clients {
		if c == client {
			invariant.Assert(client.Base().State() != Closed, "removeClient: %v already closed", client)
			client.Base().transitionTo(Closed)
			b.clients = append(b.clients[:i], b.clients[i+1:]...)

			rm := b.host.Cluster().ResourceManager(b.host.Priority())
			rm.Connections().Dec()
			return
		}
	}
}

// DrainConnections implements both drain behaviors from §4.8: idle clients
// close immediately either way; DrainExistingConnections additionally pushes
// every remaining non-closed client toward Draining so in-flight streams
// finish but no new stream is ever attached to them again.
func (b *Base) DrainConnections(behavior DrainBehavior) {
	if behavior == DrainAndDelete {
		b.deleting = true
	}

	var toClose []Client
	for _, c := range b.clients {
		if c.NumActiveStreams() == 0 {
			toClose = append(toClose, c)
			continue
		}
		if behavior == DrainExistingConnections && c.Base().State() != Draining {
			c.Base().zeroRemainingStreams()
			c.Base().transitionTo(Draining)
		}
	}
	for _, c := range toClose {
		b.closeClient(c, transport.CloseNoFlush)
	}
}

// DestructAllConnections force-closes every remaining client, used on
// shutdown once draining has run its course (or been skipped entirely).
func (b *Base) DestructAllConnections() {
	clients := append([]Client(nil), b.clients...)
	for _, c := range clients {
		b.closeClient(c, transport.CloseNoFlush)
	}
	b.dispatcher.ClearDeferredDeleteList()

	rm := b.host.Cluster().ResourceManager(b.host.Priority())
	for {
		p := b.pending.popFront()
		if p == nil {
			return
		}
		rm.PendingRequests().Dec()
		p.ctx.OnPoolFailure(LocalConnectionFailure)
	}
}

// NumActiveClients returns the count of non-closed clients, for tests and
// introspection (adminapi).
func (b *Base) NumActiveClients() int { return len(b.clients) }

// PendingStreams returns the number of streams still waiting for a client.
func (b *Base) PendingStreams() int { return b.pending.len() }
