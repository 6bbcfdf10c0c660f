// Package statsmirror is a background exporter that publishes a read-only
// JSON snapshot of each registered pool's protocol, idle and
// has-active-connections state (no capacity or draining figures) to
// Redis on a fixed interval, for cross-process dashboards. It never feeds
// back into any pool decision — the pool core stays process-local per
// spec §3/§5's non-goal on persisted state; Redis here is an export sink
// only, the same non-authoritative role redisclient.Client plays in the
// teacher (main.go logs a warning and continues if Redis is unreachable).
// Grounded on provider/healthpoller.go's ticker/cancel/done-channel shape.
package statsmirror

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/alfredgw/connpool/redisclient"
)

// Pool is the subset of fixedpool.HTTPPool this exporter snapshots.
type Pool interface {
	ProtocolDescription() string
	IsIdle() bool
	HasActiveConnections() bool
}

// snapshot is the JSON document written to Redis per pool per tick.
type snapshot struct {
	Host             string    `json:"host"`
	Protocol         string    `json:"protocol"`
	Idle             bool      `json:"idle"`
	HasActiveClients bool      `json:"has_active_connections"`
	ObservedAt        time.Time `json:"observed_at"`
}

// Exporter is the ticker-driven background publisher.
type Exporter struct {
	redis     *redisclient.Client
	logger    zerolog.Logger
	interval  time.Duration
	keyPrefix string

	mu    sync.RWMutex
	pools map[string]Pool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewExporter builds an Exporter publishing through redis every interval
// (minimum 1 second), keyed under keyPrefix.
func NewExporter(redis *redisclient.Client, logger zerolog.Logger, interval time.Duration, keyPrefix string) *Exporter {
	if interval < time.Second {
		interval = time.Second
	}
	return &Exporter{
		redis:     redis,
		logger:    logger.With().Str("component", "stats_mirror").Logger(),
		interval:  interval,
		keyPrefix: keyPrefix,
		pools:     make(map[string]Pool),
		done:      make(chan struct{}),
	}
}

// Register adds (or replaces) the pool exported under hostAddr.
func (e *Exporter) Register(hostAddr string, p Pool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pools[hostAddr] = p
}

// Start begins the background publish loop. Call Stop to shut it down
// gracefully.
func (e *Exporter) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.logger.Info().Dur("interval", e.interval).Msg("starting stats mirror exporter")
	go e.loop(ctx)
}

// Stop cancels the loop and waits for it to finish.
func (e *Exporter) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	<-e.done
	e.logger.Info().Msg("stats mirror exporter stopped")
}

func (e *Exporter) loop(ctx context.Context) {
	defer close(e.done)

	e.publishAll()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.publishAll()
		}
	}
}

func (e *Exporter) publishAll() {
	e.mu.RLock()
	pools := make(map[string]Pool, len(e.pools))
	for k, v := range e.pools {
		pools[k] = v
	}
	e.mu.RUnlock()

	for hostAddr, p := range pools {
		e.publishOne(hostAddr, p)
	}
}

func (e *Exporter) publishOne(hostAddr string, p Pool) {
	snap := snapshot{
		Host:             hostAddr,
		Protocol:         p.ProtocolDescription(),
		Idle:             p.IsIdle(),
		HasActiveClients: p.HasActiveConnections(),
		ObservedAt:       time.Now(),
	}
	body, err := json.Marshal(snap)
	if err != nil {
		e.logger.Warn().Err(err).Str("host", hostAddr).Msg("failed to marshal pool snapshot")
		return
	}

	key := e.keyPrefix + ":" + hostAddr
	if err := e.redis.Set(key, body, 2*e.interval); err != nil {
		e.logger.Warn().Err(err).Str("host", hostAddr).Msg("failed to publish pool snapshot to redis")
	}
}
