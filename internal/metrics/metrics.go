// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a relay server.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for the relay.
// A nil Collector is safe to use; every method becomes a no-op.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	commandsTotal     atomic.Int64
	broadcastsTotal   atomic.Int64
	deliveriesTotal   atomic.Int64
	deliveryFailures  atomic.Int64
	nickCollisions    atomic.Int64
	registrations     atomic.Int64
	errorsTotal       atomic.Int64

	mu              sync.RWMutex
	startTime       time.Time
	lastHealthCheck time.Time
	lastError       time.Time
	lastErrorMsg    string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Protocol metrics ─────────────────────────────────────────────────

// CommandDispatched records one parsed line handed to the dispatcher.
func (c *Collector) CommandDispatched() {
	if c == nil {
		return
	}
	c.commandsTotal.Add(1)
}

// Broadcast records one fan-out with the number of successful
// deliveries and failed ones.
func (c *Collector) Broadcast(delivered, failed int) {
	if c == nil {
		return
	}
	c.broadcastsTotal.Add(1)
	c.deliveriesTotal.Add(int64(delivered))
	c.deliveryFailures.Add(int64(failed))
}

// NickCollision records a rejected NICK.
func (c *Collector) NickCollision() {
	if c == nil {
		return
	}
	c.nickCollisions.Add(1)
}

// Registration records a session reaching the Registered state.
func (c *Collector) Registration() {
	if c == nil {
		return
	}
	c.registrations.Add(1)
}

// Commands returns the number of dispatched commands.
func (c *Collector) Commands() int64 {
	if c == nil {
		return 0
	}
	return c.commandsTotal.Load()
}

// Broadcasts returns the number of fan-outs performed.
func (c *Collector) Broadcasts() int64 {
	if c == nil {
		return 0
	}
	return c.broadcastsTotal.Load()
}

// Deliveries returns the number of lines successfully written.
func (c *Collector) Deliveries() int64 {
	if c == nil {
		return 0
	}
	return c.deliveriesTotal.Load()
}

// DeliveryFailures returns the number of failed per-connection writes.
func (c *Collector) DeliveryFailures() int64 {
	if c == nil {
		return 0
	}
	return c.deliveryFailures.Load()
}

// NickCollisions returns the number of rejected NICK commands.
func (c *Collector) NickCollisions() int64 {
	if c == nil {
		return 0
	}
	return c.nickCollisions.Load()
}

// Registrations returns how many sessions reached Registered.
func (c *Collector) Registrations() int64 {
	if c == nil {
		return 0
	}
	return c.registrations.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Health ───────────────────────────────────────────────────────────

// RecordHealthCheck updates the last health check timestamp.
func (c *Collector) RecordHealthCheck() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastHealthCheck = time.Now()
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	Commands          int64  `json:"commands"`
	Broadcasts        int64  `json:"broadcasts"`
	Deliveries        int64  `json:"deliveries"`
	DeliveryFailures  int64  `json:"delivery_failures"`
	NickCollisions    int64  `json:"nick_collisions"`
	Registrations     int64  `json:"registrations"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastHealthCheck   string `json:"last_health_check,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		Commands:          c.commandsTotal.Load(),
		Broadcasts:        c.broadcastsTotal.Load(),
		Deliveries:        c.deliveriesTotal.Load(),
		DeliveryFailures:  c.deliveryFailures.Load(),
		NickCollisions:    c.nickCollisions.Load(),
		Registrations:     c.registrations.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastHealthCheck.IsZero() {
		s.LastHealthCheck = c.lastHealthCheck.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
