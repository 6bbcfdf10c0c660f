// Package fixedpool binds a fixed, ordered protocol preference list to a
// pool.Base, picking the first protocol this repo actually implements a
// codec for and constructing the matching specialization — the factory
// glue role original_source/src/rp-fixed-http-conn-pool-impl.c plays.
// HTTP/2 is absent from the preference list below: implementing an HTTP/2
// codec is out of scope per spec.md §1, so "fixed" here always resolves to
// HTTP/1.1.
package fixedpool

import (
	"github.com/alfredgw/connpool/dispatcher"
	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/pool"
	"github.com/alfredgw/connpool/pool/http1"
	"github.com/alfredgw/connpool/transport"
)

// Protocol identifies a codec this factory knows how to build a Client
// for.
type Protocol int

const (
	ProtocolHTTP1 Protocol = iota
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP1:
		return "HTTP/1.1"
	default:
		return "unknown"
	}
}

// HTTPPool is an HTTP connection pool bound to a fixed protocol.
type HTTPPool struct {
	base     *pool.Base
	ops      *http1.Ops
	protocol Protocol
}

// NewHTTPPool picks the first protocol in protocols this repo implements
// (today, always HTTP/1.1) and builds a pool.Base + http1.Ops bound to it.
func NewHTTPPool(h host.Host, d *dispatcher.Dispatcher, dial transport.Dialer, addr string, protocols []Protocol) *HTTPPool {
	protocol := ProtocolHTTP1
	for _, p := range protocols {
		if p == ProtocolHTTP1 {
			protocol = p
			break
		}
	}

	ops := http1.NewOps(h, dial, addr, uint32(h.Cluster().MaxRequestsPerConnection()))
	base := pool.NewBase(h, d, ops)
	ops.SetBase(base)

	return &HTTPPool{base: base, ops: ops, protocol: protocol}
}

// NewStream is the ConnectionPool/HttpConnectionPool surface exposed to
// routers (§6): attach ctx now if capacity already exists, otherwise queue
// and try to open a connection.
func (p *HTTPPool) NewStream(ctx pool.AttachContext, canSendEarlyData bool) *pool.PendingStream {
	return p.base.NewStream(ctx, canSendEarlyData)
}

// HasActiveConnections reports whether any non-closed client exists.
func (p *HTTPPool) HasActiveConnections() bool { return p.base.NumActiveClients() > 0 }

// ProtocolDescription matches protocol_description() -> &str.
func (p *HTTPPool) ProtocolDescription() string { return p.protocol.String() }

// IsIdle matches ConnectionPool::is_idle().
func (p *HTTPPool) IsIdle() bool { return p.base.NumActiveClients() == 0 && p.base.PendingStreams() == 0 }

// DrainConnections matches ConnectionPool::drain_connections(behavior).
func (p *HTTPPool) DrainConnections(behavior pool.DrainBehavior) { p.base.DrainConnections(behavior) }

// Host matches ConnectionPool::host().
func (p *HTTPPool) Host() host.Host { return p.base.Host() }

// MaybePreconnect matches ConnectionPool::maybe_preconnect(ratio).
func (p *HTTPPool) MaybePreconnect(ratio float32) bool { return p.base.MaybePreconnect(ratio) }

// Base exposes the underlying pool.Base for introspection (adminapi) and
// for CancelPendingStream, which has no protocol-specific meaning to wrap.
func (p *HTTPPool) Base() *pool.Base { return p.base }
