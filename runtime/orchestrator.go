// Package runtime holds the process-scoped hub: who is connected, who listens
// to which room, and the background workers that watch over them.
// It contains no business rule, the session handler owns those.
package runtime

import (
	"context"
	"fmt"
	"hire-chat/contract"
	"hire-chat/domain/event"
	"hire-chat/moderation"
	"hire-chat/runtime/workers"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BufferSize           int
	RestartInterval      time.Duration
	MetricInterval       time.Duration
	PresenceInterval     time.Duration
	LowCapacityThreshold int
	EnableModeration     bool
	CharReplacement      rune
	CompactionSchedule   string
}

// Orchestrator owns the Connection Registry, the Room Broadcaster and the
// supervised workers for the lifetime of one server process. Nothing in it is
// global: two orchestrators never share state.
type Orchestrator struct {
	mu            sync.Mutex
	log           *slog.Logger
	config        Config
	supervisor    *workers.Supervisor
	registry      *Registry
	broadcaster   *Broadcaster
	telemetryChan chan event.Event
	counter       *event.Counter
	running       bool
}

func NewOrchestrator(log *slog.Logger, config Config) *Orchestrator {
	telemetryChan := make(chan event.Event, config.BufferSize)
	return &Orchestrator{
		log:           log,
		config:        config,
		supervisor:    workers.NewSupervisor(log, telemetryChan, config.RestartInterval),
		registry:      NewRegistry(),
		broadcaster:   NewBroadcaster(log, telemetryChan),
		telemetryChan: telemetryChan,
		counter:       event.NewCounter(),
	}
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

func (o *Orchestrator) Broadcaster() *Broadcaster {
	return o.broadcaster
}

func (o *Orchestrator) TelemetryChan() chan event.Event {
	return o.telemetryChan
}

// Counter exposes the telemetry totals aggregated by the handlers.
func (o *Orchestrator) Counter() *event.Counter {
	return o.counter
}

// Moderator builds the censored-words moderator from the embedded dictionaries.
// It returns nil when moderation is disabled.
func (o *Orchestrator) Moderator() (*moderation.Moderator, error) {
	if !o.config.EnableModeration {
		return nil, nil
	}
	data, err := NewCensoredLoader(moderation.CensoredWords).LoadAll(moderation.CensoredDir)
	if err != nil {
		return nil, err
	}
	o.log.Info("Censored dictionaries loaded",
		"languages", strings.Join(data.Languages, ","), "words", len(data.Words))

	return moderation.NewModerator(data.Words, o.config.CharReplacement, o.log)
}

// Start registers the workers and runs them until ctx is canceled or Stop is called.
// It blocks. lifecycle is used by the presence worker to close stale
// connections, collector (optional) is compacted on the configured schedule.
func (o *Orchestrator) Start(ctx context.Context, lifecycle contract.SessionLifecycle, collector workers.ValueLogCollector) error {
	// Preparation phase, without the lock
	toRun := []contract.Worker{
		workers.NewTelemetryWorker(o.log, o.telemetryChan, o.handlers()),
		workers.NewHealthMonitoringWorker(o.log, o.telemetryChan, o.registry, o.broadcaster, o.config.MetricInterval),
		workers.NewChannelCapacityWorker(o.log, []workers.NamedChannel{
			{Name: "telemetry", Channel: o.telemetryChan},
		}, o.telemetryChan, o.config.MetricInterval),
		workers.NewPresenceWorker(o.log, o.registry, lifecycle, o.config.PresenceInterval),
	}
	if collector != nil && o.config.CompactionSchedule != "" {
		compaction, err := workers.NewCompactionWorker(o.log, collector, o.config.CompactionSchedule)
		if err != nil {
			return err
		}
		toRun = append(toRun, compaction)
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.running = true
	o.supervisor.Add(toRun...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "workers", len(toRun))
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) handlers() []event.Handler {
	return []event.Handler{
		event.NewMessageSentHandler(o.log, o.counter),
		event.NewDeliveryFailedHandler(o.log, o.counter),
		event.NewConnectionHandler(o.log),
		event.NewWorkerRestartedAfterPanicHandler(o.log, o.counter),
		event.NewChannelCapacityHandler(o.log, o.config.LowCapacityThreshold),
		event.NewProcessStatsHandler(o.log),
	}
}

// Stop cancels the supervised workers. Start returns once all of them exited.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
