package limits

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// ResourceGuardConfig holds the static thresholds ResourceGuard enforces.
type ResourceGuardConfig struct {
	MaxConnections     int
	CPURejectThreshold float64 // percent, 0 disables the CPU brake
	PollInterval       time.Duration
}

// ResourceGuard is the broker's admission gate: a hard connection count
// plus a CPU emergency brake, sampled periodically with gopsutil rather
// than the teacher's cgroup-aware CPUMonitor — a single-process broker has
// no container quota to reason about, only host CPU load (see DESIGN.md).
type ResourceGuard struct {
	cfg    ResourceGuardConfig
	logger zerolog.Logger

	connections int64
	cpuPercent  atomic.Value // float64
}

// NewResourceGuard builds a guard. Call StartMonitoring to begin sampling
// CPU usage in the background.
func NewResourceGuard(cfg ResourceGuardConfig, logger zerolog.Logger) *ResourceGuard {
	rg := &ResourceGuard{cfg: cfg, logger: logger.With().Str("component", "resource_guard").Logger()}
	rg.cpuPercent.Store(0.0)
	return rg
}

// Admit reports whether a new connection should be accepted, and a reason
// if not. On success the caller must call Release when the connection
// closes.
func (rg *ResourceGuard) Admit() (ok bool, reason string) {
	current := atomic.LoadInt64(&rg.connections)
	if rg.cfg.MaxConnections > 0 && current >= int64(rg.cfg.MaxConnections) {
		return false, fmt.Sprintf("at max connections (%d)", rg.cfg.MaxConnections)
	}

	if rg.cfg.CPURejectThreshold > 0 {
		if pct := rg.cpuPercent.Load().(float64); pct > rg.cfg.CPURejectThreshold {
			return false, fmt.Sprintf("CPU %.1f%% > %.1f%%", pct, rg.cfg.CPURejectThreshold)
		}
	}

	atomic.AddInt64(&rg.connections, 1)
	return true, ""
}

// Release returns a connection slot taken by a prior successful Admit.
func (rg *ResourceGuard) Release() {
	atomic.AddInt64(&rg.connections, -1)
}

// Connections reports the current admitted connection count.
func (rg *ResourceGuard) Connections() int64 {
	return atomic.LoadInt64(&rg.connections)
}

// StartMonitoring samples host CPU usage every PollInterval until ctx is
// cancelled.
func (rg *ResourceGuard) StartMonitoring(ctx context.Context) {
	interval := rg.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				percents, err := cpu.Percent(0, false)
				if err != nil || len(percents) == 0 {
					continue
				}
				rg.cpuPercent.Store(percents[0])
				rg.logger.Debug().Float64("cpu_percent", percents[0]).Int64("connections", rg.Connections()).Msg("resource sample")
			}
		}
	}()
}
