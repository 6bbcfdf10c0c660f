package http1

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alfredgw/connpool/transport"
)

// loopbackDialer dials whatever net.Listener the test set up, ignoring the
// requested address — good enough to drive Client against an in-process
// HTTP/1 server.
type loopbackDialer struct {
	addr string
}

func (d *loopbackDialer) Dial(ctx context.Context, _ string) (transport.ClientConnection, error) {
	conn, err := net.Dial("tcp", d.addr)
	if err != nil {
		return nil, err
	}
	return &rawClientConn{conn: conn}, nil
}

// rawClientConn is a minimal transport.ClientConnection good enough for the
// HTTP/1 client, which only needs Close and RawConnAccessor.
type rawClientConn struct {
	conn net.Conn
}

func (c *rawClientConn) State() transport.State                         { return transport.StateOpen }
func (c *rawClientConn) ReadDisable(bool) error                         { return nil }
func (c *rawClientConn) NoDelay(bool)                                   {}
func (c *rawClientConn) Close(transport.CloseType)                      { _ = c.conn.Close() }
func (c *rawClientConn) Write(buf []byte, _ bool) error                 { _, err := c.conn.Write(buf); return err }
func (c *rawClientConn) AddConnectionCallbacks(transport.ConnectionCallbacks) {}
func (c *rawClientConn) AddReadFilter(transport.ReadFilter)             {}
func (c *rawClientConn) ConnectionInfoSetter() transport.InfoSetter     { return nil }
func (c *rawClientConn) Raw() net.Conn                                  { return c.conn }

func TestClientSendsRequestAndReadsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	l := srv.Listener
	c := NewClient(nil, &loopbackDialer{addr: l.Addr().String()}, l.Addr().String(), 0)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var closed bool
	w := c.AttachStream(func() { closed = true })

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Host = l.Addr().String()
	resp, stream, err := w.SendRequest(req)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if resp.Header.Get("X-Test") != "yes" {
		t.Fatalf("expected X-Test header echoed, got %q", resp.Header.Get("X-Test"))
	}

	var all []byte
	for {
		chunk, err := stream.Next()
		all = append(all, chunk...)
		if err != nil {
			break
		}
	}
	if string(all) != "hello" {
		t.Fatalf("expected body 'hello', got %q", string(all))
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed {
		t.Fatalf("expected onStreamClosed to fire once the response body is closed")
	}
	if c.NumActiveStreams() != 0 {
		t.Fatalf("expected client to report 0 active streams after stream closes, got %d", c.NumActiveStreams())
	}
}

func TestConnectionCloseHeaderForcesClientDraining(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.Write([]byte("bye"))
	}))
	defer srv.Close()

	l := srv.Listener
	c := NewClient(nil, &loopbackDialer{addr: l.Addr().String()}, l.Addr().String(), 0)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	w := c.AttachStream(func() {})
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Host = l.Addr().String()
	_, stream, err := w.SendRequest(req)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	for {
		if _, err := stream.Next(); err != nil {
			break
		}
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.Base().RemainingStreams() != 0 {
		t.Fatalf("expected a Connection: close response to zero the client's remaining-stream budget, got %d", c.Base().RemainingStreams())
	}
}

func TestClientCapacityReflectsSingleInFlightStreamLimit(t *testing.T) {
	c := NewClient(nil, &loopbackDialer{}, "", 0)
	// bypass Connect to avoid needing a live server: exercise capacity math
	// directly against the base state machine's concurrent-stream limit.
	if c.CurrentUnusedCapacity() != 1 {
		t.Fatalf("expected capacity 1 before any stream attaches, got %d", c.CurrentUnusedCapacity())
	}
	c.AttachStream(func() {})
	if c.CurrentUnusedCapacity() != 0 {
		t.Fatalf("expected capacity 0 once a stream is attached, got %d", c.CurrentUnusedCapacity())
	}
}
