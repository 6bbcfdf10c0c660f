package statsmirror

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePool struct {
	protocol string
	idle     bool
}

func (p *fakePool) ProtocolDescription() string { return p.protocol }
func (p *fakePool) IsIdle() bool                { return p.idle }
func (p *fakePool) HasActiveConnections() bool  { return !p.idle }

func TestNewExporterClampsMinimumInterval(t *testing.T) {
	e := NewExporter(nil, zerolog.Nop(), 10*time.Millisecond, "prefix")
	if e.interval != time.Second {
		t.Fatalf("expected interval clamped to 1s minimum, got %v", e.interval)
	}
}

func TestRegisterStoresPool(t *testing.T) {
	e := NewExporter(nil, zerolog.Nop(), time.Second, "prefix")
	p := &fakePool{protocol: "HTTP/1.1", idle: true}
	e.Register("host:1", p)

	e.mu.RLock()
	got, ok := e.pools["host:1"]
	e.mu.RUnlock()
	if !ok || got != Pool(p) {
		t.Fatalf("expected registered pool to be retrievable")
	}
}
