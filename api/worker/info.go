package worker

import (
	"context"
	"runtime"

	"github.com/agentdproject/agentd/api/models"
	"github.com/agentdproject/agentd/api/version"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Info snapshots the worker's identity and resource usage. Resource probes
// are best-effort, a failing probe leaves its field zero rather than
// failing the call.
func (w *Worker) Info(ctx context.Context) *models.ServerInfo {
	info := &models.ServerInfo{
		OK:           true,
		ServerID:     w.cfg.ServerID,
		Version:      version.Version,
		DashboardURL: w.cfg.DashboardURL,
		StartedAt:    w.startedAt,
		Agents:       w.registry.Size(),
		QueuedJobs:   w.pool.Queued(),
		Goroutines:   runtime.NumGoroutine(),
	}

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		info.CPUPercent = pcts[0]
	}
	if w.proc != nil {
		if mi, err := w.proc.MemoryInfoWithContext(ctx); err == nil {
			info.MemRSS = mi.RSS
		}
		if mp, err := w.proc.MemoryPercentWithContext(ctx); err == nil {
			info.MemPercent = mp
		}
	}
	return info
}
