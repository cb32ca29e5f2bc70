package observability

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// RelayStats aggregates the relay counters for logs and the debug surface.
type RelayStats struct {
	DirectRouted  uint64 `json:"direct_routed"`
	GroupRouted   uint64 `json:"group_routed"`
	Deliveries    uint64 `json:"deliveries"`
	DeliveryDrops uint64 `json:"delivery_drops"`
	FanoutSkips   uint64 `json:"fanout_skips"`
}

// MonitoringManager collects real-time relay telemetry.
// All counters are atomic; a zero interval between reads is valid.
type MonitoringManager struct {
	log       *slog.Logger
	LastCheck time.Time

	directRouted  uint64
	groupRouted   uint64
	deliveries    uint64
	deliveryDrops uint64
	fanoutSkips   uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, LastCheck: time.Now()}
}

// IncrDirectRouted counts a direct message persisted and routed.
func (mm *MonitoringManager) IncrDirectRouted() {
	atomic.AddUint64(&mm.directRouted, 1)
}

// IncrGroupRouted counts a group operation persisted and fanned out.
func (mm *MonitoringManager) IncrGroupRouted() {
	atomic.AddUint64(&mm.groupRouted, 1)
}

// IncrDeliveries counts a successful push to a live connection.
func (mm *MonitoringManager) IncrDeliveries() {
	atomic.AddUint64(&mm.deliveries, 1)
}

// IncrDeliveryDrops counts a push swallowed because the target connection
// was dead or saturated. Never surfaced to users.
func (mm *MonitoringManager) IncrDeliveryDrops() {
	atomic.AddUint64(&mm.deliveryDrops, 1)
}

// IncrFanoutSkips counts group members skipped because they were offline.
func (mm *MonitoringManager) IncrFanoutSkips() {
	atomic.AddUint64(&mm.fanoutSkips, 1)
}

// GetLatest returns a consistent-enough snapshot of all counters.
func (mm *MonitoringManager) GetLatest() RelayStats {
	return RelayStats{
		DirectRouted:  atomic.LoadUint64(&mm.directRouted),
		GroupRouted:   atomic.LoadUint64(&mm.groupRouted),
		Deliveries:    atomic.LoadUint64(&mm.deliveries),
		DeliveryDrops: atomic.LoadUint64(&mm.deliveryDrops),
		FanoutSkips:   atomic.LoadUint64(&mm.fanoutSkips),
	}
}
