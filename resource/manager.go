package resource

// Manager is a named bundle of the four Limits a cluster/priority needs:
// connections, pending requests, requests, and connection pools, plus the
// max-connections-per-host scalar (not a Limit — it bounds a single host's
// share of the connections Limit, not a counter of its own).
type Manager struct {
	runtimeKeyPrefix string

	connections      *Limit
	pendingRequests  *Limit
	requests         *Limit
	connectionPools  *Limit
	maxConnsPerHost  uint64
}

// ManagerConfig carries the four ceilings and the per-host scalar. An
// all-zero ManagerConfig falls back to DefaultManagerConfig in NewManager;
// a zero in an otherwise set config is kept as a ceiling of zero.
type ManagerConfig struct {
	MaxConnections        uint64
	MaxPendingRequests     uint64
	MaxRequests            uint64
	MaxConnectionPools     uint64
	MaxConnectionsPerHost  uint64
}

// DefaultManagerConfig mirrors Envoy's conservative per-cluster defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxConnections:        1024,
		MaxPendingRequests:     1024,
		MaxRequests:            1024,
		MaxConnectionPools:     10,
		MaxConnectionsPerHost:  1 << 32, // effectively unbounded unless configured
	}
}

// NewManager builds the four Limits keyed off runtimeKeyPrefix + a fixed
// suffix, as the resource manager implementation in the original source
// does (one RpManagedResourceImpl per concern, all sharing a runtime-key
// namespace).
func NewManager(runtimeKeyPrefix string, cfg ManagerConfig) *Manager {
	if cfg == (ManagerConfig{}) {
		cfg = DefaultManagerConfig()
	}
	return &Manager{
		runtimeKeyPrefix: runtimeKeyPrefix,
		connections:      NewLimit(cfg.MaxConnections, runtimeKeyPrefix+".max_connections"),
		pendingRequests:  NewLimit(cfg.MaxPendingRequests, runtimeKeyPrefix+".max_pending_requests"),
		requests:         NewLimit(cfg.MaxRequests, runtimeKeyPrefix+".max_requests"),
		connectionPools:  NewLimit(cfg.MaxConnectionPools, runtimeKeyPrefix+".max_connection_pools"),
		maxConnsPerHost:  cfg.MaxConnectionsPerHost,
	}
}

// Connections returns the connections Limit.
func (m *Manager) Connections() *Limit { return m.connections }

// PendingRequests returns the pending-requests Limit.
func (m *Manager) PendingRequests() *Limit { return m.pendingRequests }

// Requests returns the requests Limit.
func (m *Manager) Requests() *Limit { return m.requests }

// ConnectionPools returns the connection-pools Limit.
func (m *Manager) ConnectionPools() *Limit { return m.connectionPools }

// MaxConnectionsPerHost returns the per-host connection ceiling scalar.
func (m *Manager) MaxConnectionsPerHost() uint64 { return m.maxConnsPerHost }
