package workers

import (
	"context"
	"hire-chat/contract"
	"hire-chat/domain/event"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker samples the server process and the size of the hub.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	telemetryChan  chan event.Event
	registry       contract.IConnectionRegistry
	broadcaster    contract.IRoomBroadcaster
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	telemetryChan chan event.Event,
	registry contract.IConnectionRegistry,
	broadcaster contract.IRoomBroadcaster,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		telemetryChan:  telemetryChan,
		registry:       registry,
		broadcaster:    broadcaster,
		metricInterval: metricInterval,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping process stats")
			return nil
		case <-ticker.C:
			stats, err := w.sample(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case w.telemetryChan <- event.NewEvent(event.ProcessStatsType, stats):
			default:
				w.log.Debug("Observability telemetry event lost")
			}
		}
	}
}

// sample retrieves memory, CPU and OS status of the process along with the hub counters.
func (w *HealthMonitoringWorker) sample(p *process.Process) (event.ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return event.ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return event.ProcessStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return event.ProcessStats{}, err
	}
	users, connections := w.registry.Len()
	return event.ProcessStats{
		PID:         p.Pid,
		Status:      status,
		Cpu:         cpuPercent,
		RssBytes:    memInfo.RSS,
		Users:       users,
		Connections: connections,
		Rooms:       w.broadcaster.Rooms(),
	}, nil
}
