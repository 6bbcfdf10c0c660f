// Package transport implements the network-connection boundary contract the
// pool consumes (§6): connection state, half-duplex controls, and the
// connection-event callback mechanism. TLS and raw-buffer transport socket
// implementations are out of scope per the pool spec — Dial below opens a
// plain net.Conn, mirroring the dialer the teacher's
// provider/pool.go:createTransport builds before handing it to
// http.Transport.
package transport

import (
	"context"
	"net"
	"time"
)

// State is the connection lifecycle state network consumers observe.
type State int

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseType mirrors the close semantics the pool may request.
type CloseType int

const (
	CloseNoFlush CloseType = iota
	CloseFlushWrite
	CloseFlushWriteAndDelay
	CloseAbort
	CloseAbortReset
)

// Event is a connection-lifecycle event delivered to registered callbacks.
type Event int

const (
	EventConnected Event = iota
	EventConnectedZeroRTT
	EventLocalClose
	EventRemoteClose
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventConnectedZeroRTT:
		return "connected_zero_rtt"
	case EventLocalClose:
		return "local_close"
	case EventRemoteClose:
		return "remote_close"
	default:
		return "unknown"
	}
}

// ConnectionCallbacks receives connection lifecycle events.
type ConnectionCallbacks interface {
	OnEvent(event Event)
}

// InfoSetter exposes the one connection_info_setter method the pool calls
// through, matching the boundary contract in §6 (set_requested_server_name).
type InfoSetter interface {
	SetRequestedServerName(name string)
}

// ReadFilter receives raw bytes read off the connection (used by the TCP
// specialization's read path).
type ReadFilter interface {
	OnData(data []byte, endStream bool)
}

// ClientConnection is the network-connection boundary contract consumed
// from §6.
type ClientConnection interface {
	State() State
	ReadDisable(disable bool) error
	NoDelay(enable bool)
	Close(closeType CloseType)
	Write(buf []byte, endStream bool) error
	AddConnectionCallbacks(cb ConnectionCallbacks)
	AddReadFilter(filter ReadFilter)
	ConnectionInfoSetter() InfoSetter
}

// RawConnAccessor is implemented by connections that can hand out their
// underlying net.Conn for synchronous request/response use — the HTTP/1
// specialization needs this because net/http's client-side codec has no
// asynchronous single-connection mode; TCP tunneling drives everything
// through ReadFilter instead and never needs it.
type RawConnAccessor interface {
	Raw() net.Conn
}

// Dialer creates ClientConnections. Implementations may be a real TCP
// dialer (DefaultDialer below) or a test double.
type Dialer interface {
	Dial(ctx context.Context, address string) (ClientConnection, error)
}

// DialConfig tunes DefaultDialer, mirroring the dial/keep-alive knobs the
// teacher's provider/pool.go:createTransport pulls from PoolConfig.
type DialConfig struct {
	DialTimeout time.Duration
	KeepAlive   time.Duration
}

// DefaultDialConfig matches the teacher's DefaultPoolConfig dial settings.
func DefaultDialConfig() DialConfig {
	return DialConfig{
		DialTimeout: 10 * time.Second,
		KeepAlive:   30 * time.Second,
	}
}

// DefaultDialer dials plain TCP connections (no TLS — out of scope per §1).
type DefaultDialer struct {
	cfg DialConfig
}

// NewDefaultDialer builds a DefaultDialer from cfg.
func NewDefaultDialer(cfg DialConfig) *DefaultDialer {
	return &DefaultDialer{cfg: cfg}
}

func (d *DefaultDialer) Dial(ctx context.Context, address string) (ClientConnection, error) {
	dialer := &net.Dialer{
		Timeout:   d.cfg.DialTimeout,
		KeepAlive: d.cfg.KeepAlive,
	}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return newNetConn(conn), nil
}
