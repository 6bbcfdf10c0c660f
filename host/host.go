// Package host defines the boundary contracts a PoolBase consumes from the
// cluster/host subsystem (out of scope per the pool spec — cluster
// configuration loading, the cluster factory and store, address parsing,
// and load-balancer policy all live outside this repo) plus a small static
// implementation good enough to drive the pool core end to end.
package host

import (
	"context"

	"github.com/alfredgw/connpool/resource"
	"github.com/alfredgw/connpool/transport"
)

// Priority mirrors Envoy's routing priority axis; the pool keys its
// resource manager lookup on it but otherwise treats it as an opaque tag.
type Priority int

const (
	PriorityDefault Priority = iota
	PriorityHigh
)

// ClusterInfo is the subset of cluster configuration the pool consults.
type ClusterInfo interface {
	// MaxRequestsPerConnection is the HTTP/1 lifetime-stream limit; 0 means
	// unlimited.
	MaxRequestsPerConnection() uint64
	// PerUpstreamPreconnectRatio is the default ratio try_create_new_connection
	// uses when called with ratio==0.
	PerUpstreamPreconnectRatio() float32
	// ResourceManager MUST be stable for the life of the owning host.
	ResourceManager(priority Priority) *resource.Manager
}

// Description is the HostDescription boundary contract: address, owning
// cluster, and priority.
type Description interface {
	Address() string
	Cluster() ClusterInfo
	Priority() Priority
}

// Host is the boundary contract consumed from the cluster/host subsystem.
type Host interface {
	Description

	// CreateConnection opens a transport-backed connection to this host,
	// bounded by ctx. DNS resolution has already happened — the
	// address is numeric, per the pool's explicit non-goal.
	CreateConnection(ctx context.Context) (transport.ClientConnection, Description, error)

	// CanCreateConnection is the soft per-host admission check consulted
	// before try_create_new_connection actually dials.
	CanCreateConnection(priority Priority) bool

	// TODO(health-check): wire the cluster's health-check subsystem once it
	// exists; the original source leaves the equivalent call sites as
	// TODOs (parent_.host()->cluster()->...) and this repo does the same —
	// implementing it is out of scope for the connection-pool core.
}

// staticClusterInfo is a fixed-config ClusterInfo, no runtime overrides.
type staticClusterInfo struct {
	maxRequestsPerConnection  uint64
	preconnectRatio           float32
	managers                  map[Priority]*resource.Manager
}

// NewStaticClusterInfo builds a ClusterInfo with one ResourceManager per
// priority that was given a config; requesting an unconfigured priority
// falls back to PriorityDefault's manager.
func NewStaticClusterInfo(maxRequestsPerConnection uint64, preconnectRatio float32, managers map[Priority]*resource.Manager) ClusterInfo {
	return &staticClusterInfo{
		maxRequestsPerConnection: maxRequestsPerConnection,
		preconnectRatio:          preconnectRatio,
		managers:                 managers,
	}
}

func (c *staticClusterInfo) MaxRequestsPerConnection() uint64 { return c.maxRequestsPerConnection }
func (c *staticClusterInfo) PerUpstreamPreconnectRatio() float32 { return c.preconnectRatio }
func (c *staticClusterInfo) ResourceManager(priority Priority) *resource.Manager {
	if m, ok := c.managers[priority]; ok {
		return m
	}
	return c.managers[PriorityDefault]
}

// StaticHost is a fixed-address Host implementation for tests and the demo
// wiring; it dials the configured address with its transport.Dialer and never
// rate-limits connection creation (CanCreateConnection always true) unless
// overridden via WithConnectionGate.
type StaticHost struct {
	address  string
	cluster  ClusterInfo
	priority Priority
	dialer   transport.Dialer
	gate     func(Priority) bool
}

// NewStaticHost builds a StaticHost that dials address via dialer.
func NewStaticHost(address string, cluster ClusterInfo, priority Priority, dialer transport.Dialer) *StaticHost {
	return &StaticHost{address: address, cluster: cluster, priority: priority, dialer: dialer}
}

// WithConnectionGate overrides CanCreateConnection's admission policy —
// used by tests exercising the starvation-avoidance rule in
// try_create_new_connection.
func (h *StaticHost) WithConnectionGate(gate func(Priority) bool) *StaticHost {
	h.gate = gate
	return h
}

func (h *StaticHost) Address() string       { return h.address }
func (h *StaticHost) Cluster() ClusterInfo  { return h.cluster }
func (h *StaticHost) Priority() Priority    { return h.priority }

func (h *StaticHost) CreateConnection(ctx context.Context) (transport.ClientConnection, Description, error) {
	conn, err := h.dialer.Dial(ctx, h.address)
	if err != nil {
		return nil, nil, err
	}
	return conn, h, nil
}

func (h *StaticHost) CanCreateConnection(priority Priority) bool {
	if h.gate != nil {
		return h.gate(priority)
	}
	return true
}
