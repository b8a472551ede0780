package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollector_Register(t *testing.T) {
	c := New()
	reg := prometheus.NewRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.Broadcast(3, 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}

	want := map[string]float64{
		"goirc_connections_total":       2,
		"goirc_connections_active":      1,
		"goirc_broadcasts_total":        1,
		"goirc_deliveries_total":        3,
		"goirc_delivery_failures_total": 1,
		"goirc_nick_collisions_total":   0,
		"goirc_received_bytes_total":    0,
	}
	for name, v := range want {
		got, ok := values[name]
		if !ok {
			t.Errorf("series %s missing", name)
			continue
		}
		if got != v {
			t.Errorf("%s = %v, want %v", name, got, v)
		}
	}
}

func TestCollector_RegisterTwiceFails(t *testing.T) {
	c := New()
	reg := prometheus.NewRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := c.Register(reg); err == nil {
		t.Error("registering the same series twice should fail")
	}
}
