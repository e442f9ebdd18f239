package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"messenger/observability"
)

// StatsSampler samples the server's own CPU and memory usage, refreshes
// the delivery rate window and logs a periodic health line.
type StatsSampler struct {
	log      *slog.Logger
	stats    *observability.DeliveryStats
	interval time.Duration
}

func NewStatsSampler(log *slog.Logger, stats *observability.DeliveryStats, interval time.Duration) *StatsSampler {
	return &StatsSampler{log: log, stats: stats, interval: interval}
}

func (w *StatsSampler) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats sampling")
			return nil
		case <-ticker.C:
			cpu, err := self.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := self.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}
			w.stats.SetSystemSample(observability.SystemSample{CPUPercent: cpu, MemPercent: ram})
			w.stats.Refresh()

			snapshot := w.stats.Snapshot()
			w.log.Info("Delivery stats",
				"connections", snapshot.ConnectionsActive,
				"accepted", snapshot.MessagesAccepted,
				"rate", snapshot.MessageRate,
				"evicted", snapshot.SlowConsumersEvicted,
				"cpu", snapshot.CPUPercent,
				"ram", snapshot.MemPercent,
			)
		}
	}
}
