package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/alfredgw/connpool/adminapi"
	"github.com/alfredgw/connpool/config"
	"github.com/alfredgw/connpool/dispatcher"
	"github.com/alfredgw/connpool/fixedpool"
	"github.com/alfredgw/connpool/host"
	"github.com/alfredgw/connpool/logger"
	"github.com/alfredgw/connpool/pool"
	"github.com/alfredgw/connpool/redisclient"
	"github.com/alfredgw/connpool/resource"
	"github.com/alfredgw/connpool/statsmirror"
	"github.com/alfredgw/connpool/transport"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("connpool starting")

	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis init failed — continuing without stats mirror")
		rc = nil
	} else if err := rc.Ping(); err != nil {
		log.Warn().Err(err).Msg("redis ping failed — continuing without stats mirror")
		rc = nil
	} else {
		log.Info().Msg("redis connected")
	}

	d := dispatcher.New()
	admin := adminapi.NewServer(log)

	var mirror *statsmirror.Exporter
	if rc != nil {
		mirror = statsmirror.NewExporter(rc, log, cfg.StatsMirrorInterval, cfg.StatsMirrorKeyPrefix)
	}

	pools := buildPools(cfg, log, d)
	for addr, p := range pools {
		admin.Register(addr, p)
		if mirror != nil {
			mirror.Register(addr, p)
		}
	}
	if mirror != nil {
		mirror.Start()
	}

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	go d.Run(dispatcherCtx, cfg.DispatcherTickInterval)

	adminSrv := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      admin.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin api listening")
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	if mirror != nil {
		mirror.Stop()
	}

	for addr, p := range pools {
		log.Info().Str("host", addr).Msg("draining pool")
		p.DrainConnections(pool.DrainAndDelete)
		p.Base().DestructAllConnections()
	}
	cancelDispatcher()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("admin server shutdown failed")
	} else {
		log.Info().Msg("connpool stopped gracefully")
	}
}

// buildPools constructs one FixedHttpPool per address in
// CONNPOOL_UPSTREAM_ADDRS (comma-separated host:port pairs; defaults to a
// single loopback placeholder so the binary starts cleanly with no
// configuration at all — every real deployment overrides this).
func buildPools(cfg *config.Config, log zerolog.Logger, d *dispatcher.Dispatcher) map[string]*fixedpool.HTTPPool {
	addrs := strings.Split(getUpstreamAddrs(), ",")
	dialer := transport.NewDefaultDialer(transport.DialConfig{
		DialTimeout: cfg.DialTimeout,
		KeepAlive:   cfg.KeepAlive,
	})

	pools := make(map[string]*fixedpool.HTTPPool, len(addrs))
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}

		mgr := resource.NewManager("connpool."+addr, resource.ManagerConfig{
			MaxConnections:        cfg.MaxConnections,
			MaxPendingRequests:    cfg.MaxPendingRequests,
			MaxRequests:           cfg.MaxRequests,
			MaxConnectionPools:    cfg.MaxConnectionPools,
			MaxConnectionsPerHost: cfg.MaxConnectionsPerHost,
		})
		cluster := host.NewStaticClusterInfo(
			cfg.MaxRequestsPerConnection,
			cfg.PerUpstreamPreconnectRatio,
			map[host.Priority]*resource.Manager{host.PriorityDefault: mgr},
		)
		h := host.NewStaticHost(addr, cluster, host.PriorityDefault, dialer)

		p := fixedpool.NewHTTPPool(h, d, dialer, addr, []fixedpool.Protocol{fixedpool.ProtocolHTTP1})
		pools[addr] = p
		log.Info().Str("host", addr).Msg("registered upstream pool")
	}
	return pools
}

func getUpstreamAddrs() string {
	if v := os.Getenv("CONNPOOL_UPSTREAM_ADDRS"); v != "" {
		return v
	}
	return "127.0.0.1:8080"
}
