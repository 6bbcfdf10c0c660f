package config_test

import (
	"os"
	"testing"

	"github.com/alfredgw/connpool/config"
)

func TestLoadConfigFromEnv(t *testing.T) {
	os.Setenv("CONNPOOL_MAX_CONNECTIONS", "2048")
	os.Setenv("CONNPOOL_PRECONNECT_RATIO", "1.5")
	os.Setenv("ENV", "test")
	defer func() {
		os.Unsetenv("CONNPOOL_MAX_CONNECTIONS")
		os.Unsetenv("CONNPOOL_PRECONNECT_RATIO")
		os.Unsetenv("ENV")
	}()

	cfg := config.Load()
	if cfg.MaxConnections != 2048 {
		t.Fatalf("expected MaxConnections=2048, got %d", cfg.MaxConnections)
	}
	if cfg.PerUpstreamPreconnectRatio != 1.5 {
		t.Fatalf("expected PerUpstreamPreconnectRatio=1.5, got %v", cfg.PerUpstreamPreconnectRatio)
	}
	if cfg.Env != "test" {
		t.Fatalf("expected ENV=test, got %s", cfg.Env)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := config.Load()
	if cfg.MaxRequestsPerConnection != 0 {
		t.Fatalf("expected MaxRequestsPerConnection default 0 (unlimited), got %d", cfg.MaxRequestsPerConnection)
	}
	if !cfg.ForceResetOnUpstreamHalfClose {
		t.Fatalf("expected ForceResetOnUpstreamHalfClose to default true")
	}
}
