package resource

import "testing"

func TestLimitCanCreate(t *testing.T) {
	l := NewLimit(2, "test.max")
	if !l.CanCreate() {
		t.Fatalf("expected CanCreate true at 0/2")
	}
	l.Inc()
	l.Inc()
	if l.CanCreate() {
		t.Fatalf("expected CanCreate false at 2/2")
	}
	l.Dec()
	if !l.CanCreate() {
		t.Fatalf("expected CanCreate true after Dec to 1/2")
	}
}

func TestLimitDecBy(t *testing.T) {
	l := NewLimit(10, "test.max")
	l.Inc()
	l.Inc()
	l.Inc()
	l.DecBy(2)
	if l.Count() != 1 {
		t.Fatalf("expected count 1, got %d", l.Count())
	}
}

func TestLimitSetMax(t *testing.T) {
	l := NewLimit(1, "test.max")
	l.Inc()
	if l.CanCreate() {
		t.Fatalf("expected CanCreate false at 1/1")
	}
	l.SetMax(2)
	if !l.CanCreate() {
		t.Fatalf("expected CanCreate true after raising max to 2")
	}
}

func TestLimitRoundTrip(t *testing.T) {
	l := NewLimit(5, "test.max")
	before := l.Count()
	l.Inc()
	l.Dec()
	if l.Count() != before {
		t.Fatalf("round trip changed count: before=%d after=%d", before, l.Count())
	}
}

func TestManagerBundlesFourLimits(t *testing.T) {
	m := NewManager("cluster.foo", ManagerConfig{
		MaxConnections:       5,
		MaxPendingRequests:    3,
		MaxRequests:           7,
		MaxConnectionPools:    1,
		MaxConnectionsPerHost: 2,
	})
	if m.Connections().Max() != 5 {
		t.Fatalf("expected connections max 5, got %d", m.Connections().Max())
	}
	if m.PendingRequests().Max() != 3 {
		t.Fatalf("expected pending requests max 3, got %d", m.PendingRequests().Max())
	}
	if m.Requests().Max() != 7 {
		t.Fatalf("expected requests max 7, got %d", m.Requests().Max())
	}
	if m.ConnectionPools().Max() != 1 {
		t.Fatalf("expected connection pools max 1, got %d", m.ConnectionPools().Max())
	}
	if m.MaxConnectionsPerHost() != 2 {
		t.Fatalf("expected max conns per host 2, got %d", m.MaxConnectionsPerHost())
	}
}
