package workers

import (
	"context"
	"hire-chat/contract"
	"log/slog"
	"time"
)

// PresenceWorker reaps connections that went stale without their transport
// noticing, e.g. a reader too slow to drain its buffer. They leave through
// the same disconnect path as a socket closed by the client.
type PresenceWorker struct {
	log       *slog.Logger
	registry  contract.IConnectionRegistry
	lifecycle contract.SessionLifecycle
	interval  time.Duration
}

func NewPresenceWorker(log *slog.Logger,
	registry contract.IConnectionRegistry,
	lifecycle contract.SessionLifecycle,
	interval time.Duration) *PresenceWorker {
	return &PresenceWorker{
		log:       log,
		registry:  registry,
		lifecycle: lifecycle,
		interval:  interval,
	}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence reaper")
			return nil
		case <-ticker.C:
			w.reap(ctx)
		}
	}
}

func (w *PresenceWorker) reap(ctx context.Context) {
	reaped := 0
	for _, conn := range w.registry.Snapshot() {
		if conn.Alive() {
			continue
		}
		w.lifecycle.OnDisconnect(ctx, conn)
		reaped++
	}
	if reaped > 0 {
		w.log.Info("Stale connections reaped", "count", reaped)
	}
}
