package pool

// AttachContext is how a caller (the router, in production; a test harness
// here) receives the outcome of NewStream: either a ready client to issue
// a stream against, or a failure reason. Exactly one of OnPoolReady /
// OnPoolFailure fires per NewStream call, at most once.
type AttachContext interface {
	// OnPoolReady fires once client is ready to accept a stream; earlyData
	// reports whether the stream was attached as early data.
	// client.Base().RealHostDescription() is the upstream it is bound to.
	OnPoolReady(client Client, earlyData bool)

	// OnPoolFailure fires when NewStream could not be satisfied: the queue
	// overflowed, or the client that would have served it failed first.
	OnPoolFailure(reason FailureReason)
}

// PoolOps is the strategy interface protocol specializations (pool/http1,
// pool/tcp) implement to plug into Base. This collapses the five
// overridable points the original source's ConnPoolImplBase exposes down to
// three: new_pending_stream is identical in content across both protocol
// implementations examined (it just allocates the pending-stream record),
// so Base constructs PendingStream directly rather than routing through a
// hook with nothing protocol-specific to do, and there is no on_connected /
// on_connect_failed hook (connection events go straight to
// Base.OnConnectionEvent).
type PoolOps interface {
	// InstantiateActiveClient creates a new, not-yet-connected Client bound
	// to Base's host, applying protocol-specific stream-limit defaults.
	InstantiateActiveClient() (Client, error)

	// OnPoolReady is called by Base once a client is ready to serve work;
	// implementations translate the generic ready signal into whatever the
	// protocol needs (e.g. HTTP/1 has nothing extra to do; TCP attaches
	// upstream read/write callbacks).
	OnPoolReady(client Client, ctx AttachContext, earlyData bool)

	// OnPoolFailure forwards a failure straight to ctx; kept as a hook
	// (rather than Base calling ctx directly) so a protocol can log or
	// count the failure in its own terms first.
	OnPoolFailure(reason FailureReason, ctx AttachContext)
}
