package pool

import (
	"context"
	"testing"

	"github.com/alfredgw/connpool/dispatcher"
	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/resource"
	"github.com/alfredgw/connpool/transport"
)

// fakeConn is a no-op transport.ClientConnection for driving Base without a
// real socket.
type fakeConn struct {
	cbs []transport.ConnectionCallbacks
}

func (c *fakeConn) State() transport.State            { return transport.StateOpen }
func (c *fakeConn) ReadDisable(bool) error             { return nil }
func (c *fakeConn) NoDelay(bool)                       {}
func (c *fakeConn) Close(transport.CloseType)          {}
func (c *fakeConn) Write([]byte, bool) error           { return nil }
func (c *fakeConn) AddConnectionCallbacks(cb transport.ConnectionCallbacks) {
	c.cbs = append(c.cbs, cb)
}
func (c *fakeConn) AddReadFilter(transport.ReadFilter) {}
func (c *fakeConn) ConnectionInfoSetter() transport.InfoSetter { return nil }
func (c *fakeConn) fire(e transport.Event) {
	for _, cb := range c.cbs {
		cb.OnEvent(e)
	}
}

// fakeClient is a minimal Client implementation good enough to drive Base's
// state machine in tests without a protocol specialization.
type fakeClient struct {
	base   *ActiveClient
	conn   *fakeConn
	active uint32
	early  bool
}

func newFakeClient(h host.Description, concurrentLimit uint32, early bool) *fakeClient {
	return &fakeClient{base: NewActiveClient(h, 0, concurrentLimit, concurrentLimit), early: early}
}

func (c *fakeClient) Base() *ActiveClient        { return c.base }
func (c *fakeClient) NumActiveStreams() uint32   { return c.active }
func (c *fakeClient) CurrentUnusedCapacity() int64 { return c.base.CurrentUnusedCapacity(c.active) }
func (c *fakeClient) SupportsEarlyData() bool    { return c.early }
func (c *fakeClient) Close(transport.CloseType)  {}
func (c *fakeClient) Connect(ctx context.Context) error {
	c.conn = &fakeConn{}
	c.base.SetConnection(c.conn)
	return nil
}

// fakeOps wires fakeClient creation and records OnPoolReady/OnPoolFailure
// calls instead of doing protocol work.
type fakeOps struct {
	concurrentLimit uint32
	early           bool
	created         []*fakeClient
	ready           []Client
	failures        []FailureReason
}

func (o *fakeOps) InstantiateActiveClient() (Client, error) {
	c := newFakeClient(nil, o.concurrentLimit, o.early)
	o.created = append(o.created, c)
	return c, nil
}
func (o *fakeOps) OnPoolReady(client Client, ctx AttachContext, earlyData bool) {
	o.ready = append(o.ready, client)
	// A real protocol specialization attaches the stream here, which is what
	// bumps NumActiveStreams(); fakeClient has no wire protocol to drive that
	// automatically, so the test double does it explicitly.
	if fc, ok := client.(*fakeClient); ok {
		fc.active++
	}
	ctx.OnPoolReady(client, earlyData)
}
func (o *fakeOps) OnPoolFailure(reason FailureReason, ctx AttachContext) {
	o.failures = append(o.failures, reason)
	ctx.OnPoolFailure(reason)
}

type recordingAttachContext struct {
	ready    []Client
	earlyData []bool
	failures []FailureReason
}

func (r *recordingAttachContext) OnPoolReady(client Client, earlyData bool) {
	r.ready = append(r.ready, client)
	r.earlyData = append(r.earlyData, earlyData)
}
func (r *recordingAttachContext) OnPoolFailure(reason FailureReason) {
	r.failures = append(r.failures, reason)
}

type fakeClusterInfo struct {
	ratio   float32
	manager *resource.Manager
}

func (f *fakeClusterInfo) MaxRequestsPerConnection() uint64   { return 0 }
func (f *fakeClusterInfo) PerUpstreamPreconnectRatio() float32 { return f.ratio }
func (f *fakeClusterInfo) ResourceManager(host.Priority) *resource.Manager { return f.manager }

type fakeHost struct {
	cluster host.ClusterInfo
}

func (h *fakeHost) Address() string           { return "127.0.0.1:0" }
func (h *fakeHost) Cluster() host.ClusterInfo { return h.cluster }
func (h *fakeHost) Priority() host.Priority   { return host.PriorityDefault }
func (h *fakeHost) CreateConnection(ctx context.Context) (transport.ClientConnection, host.Description, error) {
	return &fakeConn{}, h, nil
}
func (h *fakeHost) CanCreateConnection(host.Priority) bool { return true }

func newTestBase(t *testing.T, ratio float32, ops *fakeOps) (*Base, *fakeHost, *dispatcher.Dispatcher) {
	t.Helper()
	mgr := resource.NewManager("test", resource.DefaultManagerConfig())
	h := &fakeHost{cluster: &fakeClusterInfo{ratio: ratio, manager: mgr}}
	d := dispatcher.New()
	return NewBase(h, d, ops), h, d
}

func TestNewStreamCreatesConnectionWhenNoneReady(t *testing.T) {
	ops := &fakeOps{concurrentLimit: 1}
	b, _, _ := newTestBase(t, 1.0, ops)

	ctx := &recordingAttachContext{}
	p := b.NewStream(ctx, false)

	if p == nil {
		t.Fatalf("expected a pending handle while no client is ready")
	}
	// try_create_new_connections always loops the literal ratio 1.0 with
	// anticipate=true (§4.5.2), not the cluster's configured ratio; with a
	// 1-stream concurrency limit that produces two preconnected clients
	// before should_connect goes false, matching rp-conn-pool-base.c.
	if len(ops.created) != 2 {
		t.Fatalf("expected two clients created by the preconnect loop, got %d", len(ops.created))
	}
	if b.PendingStreams() != 1 {
		t.Fatalf("expected 1 pending stream, got %d", b.PendingStreams())
	}
}

func TestStreamAttachesOnceClientBecomesReady(t *testing.T) {
	ops := &fakeOps{concurrentLimit: 1}
	b, _, d := newTestBase(t, 1.0, ops)

	ctx := &recordingAttachContext{}
	b.NewStream(ctx, false)

	client := ops.created[0]
	b.OnConnectionEvent(client, transport.EventConnected)
	d.Tick() // on_upstream_ready is deferred through the dispatcher (§5)

	if len(ctx.ready) != 1 {
		t.Fatalf("expected stream to attach once client is ready, got %d ready calls", len(ctx.ready))
	}
	if b.PendingStreams() != 0 {
		t.Fatalf("expected pending queue drained, got %d", b.PendingStreams())
	}
	if client.Base().State() != Busy {
		t.Fatalf("expected client at its 1-stream limit to be Busy, got %s", client.Base().State())
	}
}

func TestStreamImmediatelyServicedByExistingReadyClient(t *testing.T) {
	ops := &fakeOps{concurrentLimit: 2}
	b, _, d := newTestBase(t, 1.0, ops)

	firstCtx := &recordingAttachContext{}
	b.NewStream(firstCtx, false)
	client := ops.created[0]
	b.OnConnectionEvent(client, transport.EventConnected)
	d.Tick()
	if client.Base().State() != Ready {
		t.Fatalf("expected client with headroom to stay Ready, got %s", client.Base().State())
	}

	secondCtx := &recordingAttachContext{}
	p := b.NewStream(secondCtx, false)

	if p != nil {
		t.Fatalf("expected immediate attach, got a pending handle")
	}
	if len(secondCtx.ready) != 1 {
		t.Fatalf("expected second stream serviced immediately by the existing Ready client")
	}
	// The immediate-attach path synchronously calls try_create_new_connections
	// right after attaching (§4.5.1 steps 1-2): attaching the second stream
	// fills the client's last slot, which makes should_connect true again, so
	// a second connection is preconnected in the same NewStream call.
	if len(ops.created) != 2 {
		t.Fatalf("expected the immediate-attach path to also preconnect a second connection, got %d created", len(ops.created))
	}
}

func TestConnectFailurePurgesPendingStreams(t *testing.T) {
	ops := &fakeOps{concurrentLimit: 1}
	b, _, _ := newTestBase(t, 1.0, ops)

	ctx := &recordingAttachContext{}
	b.NewStream(ctx, false)
	client := ops.created[0]

	b.OnConnectionEvent(client, transport.EventLocalClose)

	if len(ctx.failures) != 1 {
		t.Fatalf("expected pending stream to fail once its connecting client dies, got %d failures", len(ctx.failures))
	}
	if ctx.failures[0] != LocalConnectionFailure {
		t.Fatalf("expected LocalConnectionFailure, got %s", ctx.failures[0])
	}
	// The preconnect loop created a second connecting client alongside the
	// one that just failed; purge_pending_streams only ever removes the
	// client whose event fired, matching rp-conn-pool-base.c's
	// on_connection_event (it purges the queue unconditionally, but never
	// touches any other client's list).
	if b.NumActiveClients() != 1 {
		t.Fatalf("expected only the failed connecting client removed, got %d active clients", b.NumActiveClients())
	}
}

func TestStreamClosedReturnsBusyClientToReady(t *testing.T) {
	ops := &fakeOps{concurrentLimit: 1}
	b, _, d := newTestBase(t, 1.0, ops)

	ctx := &recordingAttachContext{}
	b.NewStream(ctx, false)
	client := ops.created[0]
	b.OnConnectionEvent(client, transport.EventConnected)
	d.Tick()

	client.active = 0 // protocol specialization would have already decremented its own counter
	b.OnStreamClosed(client)

	if client.Base().State() != Ready {
		t.Fatalf("expected client to return to Ready once its stream closes, got %s", client.Base().State())
	}
}

func TestCancelCloseExcessClosesAConnectingClient(t *testing.T) {
	ops := &fakeOps{concurrentLimit: 1}
	b, _, _ := newTestBase(t, 2.0, ops)

	ctx1 := &recordingAttachContext{}
	p1 := b.NewStream(ctx1, false)
	if len(ops.created) < 1 {
		t.Fatalf("expected at least one client created by preconnect")
	}

	before := b.NumActiveClients()
	b.CancelPendingStream(p1, CancelCloseExcess)

	if b.NumActiveClients() >= before {
		t.Fatalf("expected CancelCloseExcess to close an excess connecting client: before=%d after=%d", before, b.NumActiveClients())
	}
}

func TestDrainExistingConnectionsClosesIdleAndDrainsBusy(t *testing.T) {
	ops := &fakeOps{concurrentLimit: 1}
	b, _, d := newTestBase(t, 1.0, ops)

	ctx := &recordingAttachContext{}
	b.NewStream(ctx, false)
	client := ops.created[0]
	b.OnConnectionEvent(client, transport.EventConnected)
	d.Tick()
	client.active = 1 // mark the attached stream active so it won't be closed as idle

	b.DrainConnections(DrainExistingConnections)

	if client.Base().State() != Draining {
		t.Fatalf("expected busy client pushed to Draining, got %s", client.Base().State())
	}
	if b.NumActiveClients() != 1 {
		t.Fatalf("expected the draining client to remain until its stream closes, got %d", b.NumActiveClients())
	}

	client.active = 0
	b.OnStreamClosed(client)
	if b.NumActiveClients() != 0 {
		t.Fatalf("expected draining client closed once its last stream finishes, got %d", b.NumActiveClients())
	}
}

func TestTranslateZeroToUnlimitedAppliedAtConstruction(t *testing.T) {
	c := NewActiveClient(nil, 0, 0, 0)
	if c.RemainingStreams() != noTimeoutMax {
		t.Fatalf("expected lifetime limit translated to unlimited, got %d", c.RemainingStreams())
	}
	if c.ConcurrentStreamLimit() != noTimeoutMax {
		t.Fatalf("expected concurrent-stream limit translated to unlimited, got %d", c.ConcurrentStreamLimit())
	}
	if c.ConfiguredStreamLimit() != noTimeoutMax {
		t.Fatalf("expected configured effective-concurrent-streams translated to unlimited, got %d", c.ConfiguredStreamLimit())
	}
}
