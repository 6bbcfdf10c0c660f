package fixedpool

import (
	"context"
	"testing"

	"github.com/alfredgw/connpool/dispatcher"
	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/pool"
	"github.com/alfredgw/connpool/resource"
	"github.com/alfredgw/connpool/transport"
)

type fakeConn struct{ cbs []transport.ConnectionCallbacks }

func (c *fakeConn) State() transport.State { return transport.StateOpen }
func (c *fakeConn) ReadDisable(bool) error { return nil }
func (c *fakeConn) NoDelay(bool)           {}
func (c *fakeConn) Close(transport.CloseType) {}
func (c *fakeConn) Write([]byte, bool) error { return nil }
func (c *fakeConn) AddConnectionCallbacks(cb transport.ConnectionCallbacks) {
	c.cbs = append(c.cbs, cb)
}
func (c *fakeConn) AddReadFilter(transport.ReadFilter)         {}
func (c *fakeConn) ConnectionInfoSetter() transport.InfoSetter { return nil }

type fakeDialer struct{}

func (fakeDialer) Dial(ctx context.Context, addr string) (transport.ClientConnection, error) {
	return &fakeConn{}, nil
}

type recordingCtx struct {
	ready   bool
	failure pool.FailureReason
	failed  bool
}

func (c *recordingCtx) OnPoolReady(client pool.Client, earlyData bool) { c.ready = true }
func (c *recordingCtx) OnPoolFailure(reason pool.FailureReason)        { c.failed = true; c.failure = reason }

func TestHTTPPoolPicksHTTP1Protocol(t *testing.T) {
	mgr := resource.NewManager("test", resource.DefaultManagerConfig())
	cluster := host.NewStaticClusterInfo(0, 0, map[host.Priority]*resource.Manager{host.PriorityDefault: mgr})
	h := host.NewStaticHost("127.0.0.1:0", cluster, host.PriorityDefault, fakeDialer{})
	d := dispatcher.New()

	p := NewHTTPPool(h, d, fakeDialer{}, "127.0.0.1:0", []Protocol{ProtocolHTTP1})
	if p.ProtocolDescription() != "HTTP/1.1" {
		t.Fatalf("expected HTTP/1.1, got %s", p.ProtocolDescription())
	}
	if !p.IsIdle() {
		t.Fatalf("expected a freshly built pool to be idle")
	}

	ctx := &recordingCtx{}
	p.NewStream(ctx, false)
	if !p.HasActiveConnections() {
		t.Fatalf("expected NewStream to have created a connecting client")
	}
}
