package http1

import (
	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/pool"
	"github.com/alfredgw/connpool/transport"
)

// Ops is the pool.PoolOps implementation for HTTP/1. SetBase must be called
// once, right after pool.NewBase, to close the construction cycle (Base
// needs an Ops instance up front; Ops needs the Base it's installed in to
// report streams closing).
type Ops struct {
	base                *pool.Base
	hostDescription     host.Description
	dial                transport.Dialer
	addr                string
	lifetimeStreamLimit uint32
}

// NewOps builds the HTTP/1 strategy for a single (host, address) pair.
// lifetimeStreamLimit is max_requests_per_connection (0 = unlimited).
func NewOps(h host.Description, dial transport.Dialer, addr string, lifetimeStreamLimit uint32) *Ops {
	return &Ops{hostDescription: h, dial: dial, addr: addr, lifetimeStreamLimit: lifetimeStreamLimit}
}

// SetBase installs the owning Base; see the type's doc comment.
func (o *Ops) SetBase(b *pool.Base) { o.base = b }

func (o *Ops) InstantiateActiveClient() (pool.Client, error) {
	return NewClient(o.hostDescription, o.dial, o.addr, o.lifetimeStreamLimit), nil
}

func (o *Ops) OnPoolReady(client pool.Client, ctx pool.AttachContext, earlyData bool) {
	c := client.(*Client)
	c.AttachStream(func() { o.base.OnStreamClosed(client) })
	ctx.OnPoolReady(client, earlyData)
}

func (o *Ops) OnPoolFailure(reason pool.FailureReason, ctx pool.AttachContext) {
	ctx.OnPoolFailure(reason)
}
