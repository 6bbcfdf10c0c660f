package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

type fakePool struct {
	protocol string
	idle     bool
	active   bool
}

func (p *fakePool) ProtocolDescription() string  { return p.protocol }
func (p *fakePool) IsIdle() bool                 { return p.idle }
func (p *fakePool) HasActiveConnections() bool   { return p.active }

func TestHandlePoolsListsRegistered(t *testing.T) {
	s := NewServer(zerolog.Nop())
	s.Register("10.0.0.1:80", &fakePool{protocol: "HTTP/1.1", idle: true})

	req := httptest.NewRequest(http.MethodGet, "/pools", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Host != "10.0.0.1:80" || !got[0].Idle {
		t.Fatalf("unexpected snapshot list: %+v", got)
	}
}

func TestHandlePoolNotFound(t *testing.T) {
	s := NewServer(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/pools/nope", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleHealthz(t *testing.T) {
	s := NewServer(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
