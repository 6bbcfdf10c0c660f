// Package http1 is the HTTP/1 protocol specialization of pool.Base: one
// TCP connection per Client, at most one in-flight request/response at a
// time, decoded with net/http's request/response codec the way the
// teacher's provider.HTTPStream wraps an *http.Response body rather than a
// hand-rolled parser (grounded on provider/provider.go's HTTPStream and
// provider/pool.go's shared-transport pattern, adapted down to a single
// connection since this repo owns pooling itself instead of delegating to
// http.Transport).
package http1

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/pool"
	"github.com/alfredgw/connpool/transport"
)

// ResponseStream lets a caller read a response body incrementally, mirrored
// on provider.HTTPStream.
type ResponseStream struct {
	body io.ReadCloser
}

// Next returns the next chunk of body bytes, or io.EOF once exhausted.
func (s *ResponseStream) Next() ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := s.body.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the response body, returning the connection to the pool
// via the owning StreamWrapper's onDone callback.
func (s *ResponseStream) Close() error { return s.body.Close() }

// StreamWrapper is the one in-flight request/response exchange a Client
// may be attached to, mirroring rp-active-client-stream-wrapper.c's role of
// bridging a pending stream to the codec.
type StreamWrapper struct {
	client          *Client
	onDone          func()
	closeConnection bool
}

// SendRequest writes req onto the client's connection and blocks for a
// response. There is at most one StreamWrapper alive per Client at a time
// (concurrentStreamLimit is always 1 for HTTP/1 — see NewClient), so no
// additional synchronization is needed here.
func (w *StreamWrapper) SendRequest(req *http.Request) (*http.Response, *ResponseStream, error) {
	if err := req.Write(w.client.raw); err != nil {
		w.resetAndClose()
		return nil, nil, err
	}
	resp, err := http.ReadResponse(w.client.reader, req)
	if err != nil {
		w.resetAndClose()
		return nil, nil, err
	}
	w.inspectCloseConnection(resp)
	return resp, &ResponseStream{body: &doneNotifyingBody{rc: resp.Body, done: w.finish}}, nil
}

// inspectCloseConnection is StreamWrapper's decode_headers hook (§4.6):
// HTTP/1.0 or an explicit Connection: close response header means this
// connection must not be reused for another stream. resp.Close also covers
// the "codec client observed a remote close" case the spec treats as an
// equivalent close signal (SPEC_FULL.md §9's remote_closed resolution) —
// net/http already folds an EOF-terminated, keep-alive-less response into
// that same flag.
func (w *StreamWrapper) inspectCloseConnection(resp *http.Response) {
	http10 := resp.ProtoMajor == 1 && resp.ProtoMinor == 0
	explicitClose := strings.EqualFold(resp.Header.Get("Connection"), "close")
	w.closeConnection = http10 || explicitClose || resp.Close
}

// resetAndClose implements the "on stream reset" hook: a write or read
// failure means the codec client cannot be trusted for another request, so
// it's torn down the same way a Connection: close response would be.
func (w *StreamWrapper) resetAndClose() {
	w.closeConnection = true
	w.finish()
}

// finish is called exactly once, whether the caller closes the response
// body or abandons it. If decode_headers (or a reset) marked the
// connection for closing, it forces the client's lifetime-stream budget to
// zero first so Base.OnStreamClosed tears the client down once it sees
// zero remaining streams and zero active streams, instead of returning it
// to Ready for reuse.
func (w *StreamWrapper) finish() {
	if w.onDone == nil {
		return
	}
	done := w.onDone
	w.onDone = nil
	if w.closeConnection {
		w.client.base.ForceDraining()
	}
	done()
}

// doneNotifyingBody wraps a response body so Close also signals finish,
// regardless of whether the caller read the body to completion first.
type doneNotifyingBody struct {
	rc   io.ReadCloser
	done func()
	shut bool
}

func (b *doneNotifyingBody) Read(p []byte) (int, error) { return b.rc.Read(p) }
func (b *doneNotifyingBody) Close() error {
	err := b.rc.Close()
	if !b.shut {
		b.shut = true
		b.done()
	}
	return err
}

// Client is the HTTP/1 Client implementation: one net.Conn, a bufio.Reader
// over it for response parsing, and at most one active StreamWrapper.
type Client struct {
	base *pool.ActiveClient
	dial transport.Dialer
	addr string

	conn   transport.ClientConnection
	raw    io.ReadWriter
	reader *bufio.Reader

	active *StreamWrapper
}

// NewClient builds an unconnected HTTP/1 Client. lifetimeStreamLimit is
// max_requests_per_connection; HTTP/1 only ever runs one stream at a time,
// so concurrentStreamLimit and effectiveConcurrentStreams are always 1.
func NewClient(h host.Description, dial transport.Dialer, addr string, lifetimeStreamLimit uint32) *Client {
	return &Client{
		base: pool.NewActiveClient(h, lifetimeStreamLimit, 1, 1),
		dial: dial,
		addr: addr,
	}
}

func (c *Client) Base() *pool.ActiveClient { return c.base }

// NumActiveStreams is 1 while a StreamWrapper is attached, else 0.
func (c *Client) NumActiveStreams() uint32 {
	if c.active != nil {
		return 1
	}
	return 0
}

func (c *Client) CurrentUnusedCapacity() int64 {
	return c.base.CurrentUnusedCapacity(c.NumActiveStreams())
}

// SupportsEarlyData is always false for HTTP/1 — there is no 0-RTT
// analogue in this repo's dial path (TLS is out of scope per §1).
func (c *Client) SupportsEarlyData() bool { return false }

func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial.Dial(ctx, c.addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.base.SetConnection(conn)
	if raw, ok := conn.(transport.RawConnAccessor); ok {
		c.raw = raw.Raw()
		c.reader = bufio.NewReader(c.raw)
	}
	return nil
}

func (c *Client) Close(closeType transport.CloseType) {
	if c.conn != nil {
		c.conn.Close(closeType)
	}
}

// AttachStream hands the caller a StreamWrapper for this client's one slot.
// Called by Ops.OnPoolReady; onStreamClosed is pool.Base.OnStreamClosed,
// invoked once the exchange finishes so Base can move this client back to
// Ready (or Draining, if it's out of lifetime budget).
func (c *Client) AttachStream(onStreamClosed func()) *StreamWrapper {
	w := &StreamWrapper{client: c}
	w.onDone = func() {
		c.active = nil
		onStreamClosed()
	}
	c.active = w
	return w
}

// ExtendReleaseResources implements the resourceExtender hook pool.Base
// looks for via type assertion: an HTTP/1 client has nothing extra besides
// its connection, already closed by the time ReleaseResources runs, so
// this is a deliberate no-op kept only to document that the hook was
// considered.
func (c *Client) ExtendReleaseResources() {}

// ActiveStream returns this client's in-flight StreamWrapper, if any —
// used by an AttachContext.OnPoolReady implementation to get from the
// generic pool.Client it's handed down to something it can actually send a
// request on.
func (c *Client) ActiveStream() *StreamWrapper { return c.active }
