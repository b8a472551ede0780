package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every exported Prometheus series.
const Namespace = "goirc"

// Register exposes the collector's counters on reg.  The series read the
// atomic counters at scrape time, so there is no second bookkeeping path.
func (c *Collector) Register(reg prometheus.Registerer) error {
	if c == nil {
		return nil
	}

	counters := []struct {
		name, help string
		load       func() int64
	}{
		{"connections_total", "Connections accepted since start.", c.TotalConnections},
		{"received_bytes_total", "Bytes read from clients.", c.TotalBytesIn},
		{"sent_bytes_total", "Bytes written to clients.", c.TotalBytesOut},
		{"commands_total", "Protocol lines dispatched.", c.Commands},
		{"broadcasts_total", "Fan-out operations performed.", c.Broadcasts},
		{"deliveries_total", "Lines written to individual connections.", c.Deliveries},
		{"delivery_failures_total", "Per-connection writes that failed.", c.DeliveryFailures},
		{"nick_collisions_total", "NICK commands rejected as in use.", c.NickCollisions},
		{"registrations_total", "Sessions that reached the registered state.", c.Registrations},
		{"errors_total", "Errors recorded by the server.", c.ErrorCount},
	}

	collectors := make([]prometheus.Collector, 0, len(counters)+1)
	for _, ctr := range counters {
		load := ctr.load
		collectors = append(collectors, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      ctr.name,
			Help:      ctr.help,
		}, func() float64 { return float64(load()) }))
	}
	collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "connections_active",
		Help:      "Currently open connections.",
	}, func() float64 { return float64(c.ActiveConnections()) }))

	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
