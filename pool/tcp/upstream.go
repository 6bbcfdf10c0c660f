package tcp

import "github.com/alfredgw/connpool/transport"

// ResetReason mirrors the stream-reset reasons the downstream decoder can
// be told about; only ConnectionTermination is produced by this package
// (spec §4.7's half-close force-reset path).
type ResetReason int

const (
	ResetConnectionTermination ResetReason = iota
)

// Downstream is the downstream stream surface a tunnel pushes bytes into
// and can reset — the consumed half of the CONNECT-style exchange this
// package synthesizes (the response object that stitches filters together
// is out of scope per spec §1; this is the minimal slice it needs).
type Downstream interface {
	// DecodeHeaders200 synthesizes the ":status: 200" response that
	// completes a CONNECT handshake, called once from Upstream.EncodeHeaders.
	DecodeHeaders200()
	// DecodeData delivers one chunk of upstream-read bytes downstream.
	DecodeData(data []byte, endStream bool)
	// ResetStream aborts the downstream stream with reason/detail.
	ResetStream(reason ResetReason, detail string)
}

// Upstream is the CONNECT-style half-close tunnel: it owns a
// ConnectionData, requests the CONNECT handshake's synthesized response on
// EncodeHeaders, ferries raw bytes in both directions, and — when
// forceResetOnHalfClose is set — converts an upstream half-close into a
// full downstream reset rather than letting the downstream linger on a
// half-open stream. Grounded on original_source/src/upstream/rp-tcp-upstream.c.
type Upstream struct {
	data       *ConnectionData
	downstream Downstream

	forceResetOnHalfClose bool
	downstreamComplete    bool // set by EncodeData/EncodeHeaders(endStream=true)
	decodedEndStream       bool
}

// NewUpstream wires a ConnectionData to a Downstream, installing itself as
// the ConnectionData's read callback.
func NewUpstream(data *ConnectionData, downstream Downstream, forceResetOnHalfClose bool) *Upstream {
	u := &Upstream{data: data, downstream: downstream, forceResetOnHalfClose: forceResetOnHalfClose}
	data.SetCallbacks(u)
	return u
}

// EncodeHeaders synthesizes the 200 CONNECT response downstream; nothing is
// written upstream (the CONNECT handshake itself is between downstream and
// this proxy, not between this proxy and upstream).
func (u *Upstream) EncodeHeaders(endStream bool) error {
	u.downstreamComplete = endStream
	u.downstream.DecodeHeaders200()
	return nil
}

// EncodeData writes raw bytes to the upstream connection.
func (u *Upstream) EncodeData(data []byte, endStream bool) error {
	u.downstreamComplete = endStream
	return u.data.Write(data, endStream)
}

// EncodeTrailers flushes an empty end-of-stream write — a raw tunnel has no
// trailer concept of its own, so this just finalizes the write side.
func (u *Upstream) EncodeTrailers() error {
	u.downstreamComplete = true
	return u.data.Write(nil, true)
}

// ReadDisable forwards to the underlying connection only while it's open,
// matching read_disable_i's open-state guard.
func (u *Upstream) ReadDisable(disable bool) error {
	conn := u.data.client.conn
	if conn.State() != transport.StateOpen {
		return nil
	}
	return conn.ReadDisable(disable)
}

// OnUpstreamData implements Callbacks: forward every chunk downstream; on
// the first end-of-stream chunk, if the downstream side hasn't itself
// completed and forceResetOnHalfClose is set, reset the downstream stream
// instead of leaving it half-open forever (spec §4.7, scenario S5).
func (u *Upstream) OnUpstreamData(data []byte, endStream bool) {
	if u.decodedEndStream {
		return
	}
	u.downstream.DecodeData(data, endStream)
	if !endStream {
		return
	}
	u.decodedEndStream = true
	if !u.downstreamComplete && u.forceResetOnHalfClose {
		u.downstream.ResetStream(ResetConnectionTermination, "half_close_initiated_full_close")
	}
}

// ResetStream closes the upstream connection with NoFlush, matching
// reset_stream_i.
func (u *Upstream) ResetStream() {
	u.data.client.Close(transport.CloseNoFlush)
	u.data.Close()
}
