package tcp

import (
	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/pool"
	"github.com/alfredgw/connpool/transport"
)

// Ops is the pool.PoolOps implementation for raw TCP tunneling. SetBase
// must be called once, right after pool.NewBase, the same construction-cycle
// break http1.Ops uses.
type Ops struct {
	base                *pool.Base
	hostDescription     host.Description
	dial                transport.Dialer
	addr                string
	lifetimeStreamLimit uint32
}

// NewOps builds the TCP strategy for a single (host, address) pair.
func NewOps(h host.Description, dial transport.Dialer, addr string, lifetimeStreamLimit uint32) *Ops {
	return &Ops{hostDescription: h, dial: dial, addr: addr, lifetimeStreamLimit: lifetimeStreamLimit}
}

// SetBase installs the owning Base; see the type's doc comment.
func (o *Ops) SetBase(b *pool.Base) { o.base = b }

func (o *Ops) InstantiateActiveClient() (pool.Client, error) {
	c := NewClient(o.hostDescription, o.dial, o.addr, o.lifetimeStreamLimit)
	c.OnBaseEvent(func(event transport.Event) { o.base.OnConnectionEvent(c, event) })
	return c, nil
}

func (o *Ops) OnPoolReady(client pool.Client, ctx pool.AttachContext, earlyData bool) {
	c := client.(*Client)
	data := c.Attach(func() { o.base.OnStreamClosed(client) })
	ctx.OnPoolReady(client, earlyData)
	// The caller's AttachContext is expected to build a tcp.Upstream(data,
	// downstream, ...) from the ConnectionData it can reach via
	// client.(*tcp.Client) — Ops has no Downstream of its own to hand the
	// tunnel, matching how PoolBase never constructs AttachContext itself.
	_ = data
}

func (o *Ops) OnPoolFailure(reason pool.FailureReason, ctx pool.AttachContext) {
	ctx.OnPoolFailure(reason)
}

// ConnectionDataFor returns the live ConnectionData for client, if any —
// the accessor an AttachContext.OnPoolReady implementation uses to build a
// tcp.Upstream once OnPoolReady fires.
func ConnectionDataFor(client pool.Client) *ConnectionData {
	return client.(*Client).data
}
