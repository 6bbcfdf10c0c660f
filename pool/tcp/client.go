// Package tcp is the raw TCP protocol specialization of pool.Base: a
// bidirectional byte tunnel with no codec and no HTTP protocol of its own
// (spec §4.7 — this is CONNECT-style tunneling, not HTTP).
// Grounded on original_source/src/tcp/rp-active-tcp-client.c and
// rp-tcp-connection-data.c.
package tcp

import (
	"context"

	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/pool"
	"github.com/alfredgw/connpool/transport"
)

// Client is the TCP Client implementation: one dialed connection, a read
// filter that forwards every chunk to whichever ConnectionData is
// currently attached (there is at most one, since concurrentStreamLimit is
// always 1 — a raw tunnel has no notion of multiplexed streams), and the
// connection-event forwarding rp-active-tcp-client.c does.
type Client struct {
	base *pool.ActiveClient
	dial transport.Dialer
	addr string

	conn transport.ClientConnection
	data *ConnectionData

	onBaseEvent func(transport.Event)
}

// NewClient builds an unconnected TCP Client. TCP has no per-connection
// request budget analogous to HTTP/1's max_requests_per_connection, so
// lifetimeStreamLimit is always 0 (unlimited) unless the caller wants to
// cap reconnects for some other reason.
func NewClient(h host.Description, dial transport.Dialer, addr string, lifetimeStreamLimit uint32) *Client {
	return &Client{
		base: pool.NewActiveClient(h, lifetimeStreamLimit, 1, 1),
		dial: dial,
		addr: addr,
	}
}

func (c *Client) Base() *pool.ActiveClient { return c.base }

// NumActiveStreams is 1 while a ConnectionData is attached, else 0.
func (c *Client) NumActiveStreams() uint32 {
	if c.data != nil {
		return 1
	}
	return 0
}

func (c *Client) CurrentUnusedCapacity() int64 {
	return c.base.CurrentUnusedCapacity(c.NumActiveStreams())
}

// SupportsEarlyData is always false — there is no 0-RTT analogue for a raw
// tunnel in this repo (TLS is out of scope per §1).
func (c *Client) SupportsEarlyData() bool { return false }

func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial.Dial(ctx, c.addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.base.SetConnection(conn)
	conn.AddConnectionCallbacks(clientEventSink{c})
	conn.AddReadFilter(clientReadSink{c})
	return nil
}

func (c *Client) Close(closeType transport.CloseType) {
	if c.conn != nil {
		c.conn.Close(closeType)
	}
}

// OnBaseEvent installs the callback Ops forwards connection events through
// to pool.Base.OnConnectionEvent; set once at construction by Ops.
func (c *Client) OnBaseEvent(fn func(transport.Event)) { c.onBaseEvent = fn }

// Attach creates the one ConnectionData this client will ever host at a
// time, read-enabling the connection (it starts read-disabled — see
// clientEventSink.OnEvent) now that something is listening for bytes.
func (c *Client) Attach(onStreamClosed func()) *ConnectionData {
	d := &ConnectionData{client: c, onStreamClosed: onStreamClosed}
	c.data = d
	_ = c.conn.ReadDisable(false)
	return d
}

// detach clears this client's ConnectionData slot; called by ConnectionData
// once its callbacks have been cleared, and by the close path when the
// underlying connection drops out from under a live attach.
func (c *Client) detach() {
	c.data = nil
}

// clientEventSink adapts Client to transport.ConnectionCallbacks without
// exposing OnEvent on Client's own method set (which would collide with a
// future Client.OnEvent protocol method).
type clientEventSink struct{ c *Client }

func (s clientEventSink) OnEvent(event transport.Event) {
	c := s.c
	switch event {
	case transport.EventConnected, transport.EventConnectedZeroRTT:
		// Read-disabled until a stream attaches and wants the bytes;
		// read_enable_if_new in the source is Attach's ReadDisable(false)
		// above.
		_ = c.conn.ReadDisable(true)
	case transport.EventLocalClose, transport.EventRemoteClose:
		if c.data != nil {
			d := c.data
			c.detach()
			d.clearCallbacks()
		}
	}
	if c.onBaseEvent != nil {
		c.onBaseEvent(event)
	}
}

// clientReadSink adapts Client to transport.ReadFilter.
type clientReadSink struct{ c *Client }

func (s clientReadSink) OnData(data []byte, endStream bool) {
	c := s.c
	if c.data != nil && c.data.callbacks != nil {
		c.data.callbacks.OnUpstreamData(data, endStream)
		return
	}
	c.Close(transport.CloseNoFlush)
}
