package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// PresenceSizer reports how many users are currently reachable.
type PresenceSizer interface {
	Size() int
}

// TelemetryWorker periodically logs relay counters together with the
// process self-stats (CPU, RSS). It is the observability surface for
// swallowed delivery failures, which are never user-visible.
type TelemetryWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	presence   PresenceSizer
	interval   time.Duration
}

func NewTelemetryWorker(
	log *slog.Logger,
	monitoring *observability.MonitoringManager,
	presence PresenceSizer,
	interval time.Duration,
) *TelemetryWorker {
	return &TelemetryWorker{log: log, monitoring: monitoring, presence: presence, interval: interval}
}

// Run executes the main loop of the worker, reporting health and relay
// metrics on every tick until the context is canceled.
func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay telemetry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			stats := w.monitoring.GetLatest()
			w.log.Info("Relay telemetry",
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
				"connected_users", w.presence.Size(),
				"direct_routed", stats.DirectRouted,
				"group_routed", stats.GroupRouted,
				"deliveries", stats.Deliveries,
				"delivery_drops", stats.DeliveryDrops,
				"fanout_skips", stats.FanoutSkips,
			)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
