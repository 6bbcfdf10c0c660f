package tcp

// Callbacks is the per-attach downstream surface a Client forwards raw
// upstream reads to — the TcpUpstreamCallbacks boundary from spec §4.7.
type Callbacks interface {
	// OnUpstreamData delivers one chunk read off the upstream connection.
	OnUpstreamData(data []byte, endStream bool)
}

// ConnectionData is the per-stream handle created on attach (one per
// Client, since concurrentStreamLimit is always 1 for a raw tunnel).
// Destroying it — via Close — runs clear_callbacks: detach from the
// client, tell pool.Base the stream closed, matching
// rp-tcp-connection-data.c's on_destroy path.
type ConnectionData struct {
	client         *Client
	callbacks      Callbacks
	onStreamClosed func()
	closed         bool
}

// SetCallbacks installs the upstream tunnel's read sink — called once by
// tcp.Upstream right after ConnectionData is created.
func (d *ConnectionData) SetCallbacks(cb Callbacks) {
	d.callbacks = cb
}

// Write forwards raw bytes to the underlying connection.
func (d *ConnectionData) Write(data []byte, endStream bool) error {
	return d.client.conn.Write(data, endStream)
}

// Close runs clear_callbacks and detaches this ConnectionData from its
// Client. Idempotent.
func (d *ConnectionData) Close() {
	d.clearCallbacks()
}

// clearCallbacks nulls the callbacks, detaches from the client, and
// notifies Base that the stream closed — at which point Base.OnStreamClosed
// decides whether to return the client to Ready (scheduling
// on_upstream_ready if streams are still queued) or close it, per §4.5.5.
func (d *ConnectionData) clearCallbacks() {
	if d.closed {
		return
	}
	d.closed = true
	d.callbacks = nil
	if d.client.data == d {
		d.client.detach()
	}
	if d.onStreamClosed != nil {
		cb := d.onStreamClosed
		d.onStreamClosed = nil
		cb()
	}
}
