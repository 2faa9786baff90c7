package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"
)

const gcDiscardRatio = 0.5

// ValueLogCollector is the part of *badger.DB the compaction needs.
type ValueLogCollector interface {
	RunValueLogGC(discardRatio float64) error
}

// CompactionWorker reclaims Badger value log space on a cron schedule.
// Message read flags are rewritten in place, so the value log keeps growing without it.
type CompactionWorker struct {
	log       *slog.Logger
	db        ValueLogCollector
	schedule  string
	parser    cron.Parser
	maxRounds int
}

func NewCompactionWorker(log *slog.Logger, db ValueLogCollector, schedule string) (*CompactionWorker, error) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid compaction schedule %q: %w", schedule, err)
	}
	return &CompactionWorker{
		log:       log,
		db:        db,
		schedule:  schedule,
		parser:    parser,
		maxRounds: 10,
	}, nil
}

func (w *CompactionWorker) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(w.parser))
	if _, err := c.AddFunc(w.schedule, w.Compact); err != nil {
		return err
	}
	c.Start()
	w.log.Debug("Compaction scheduled", "schedule", w.schedule)

	<-ctx.Done()
	// Wait for a running compaction to finish
	<-c.Stop().Done()
	return nil
}

// Compact runs value log GC until Badger reports nothing left to rewrite.
func (w *CompactionWorker) Compact() {
	rounds := 0
	for ; rounds < w.maxRounds; rounds++ {
		err := w.db.RunValueLogGC(gcDiscardRatio)
		if stderrors.Is(err, badger.ErrNoRewrite) || stderrors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			w.log.Error("Value log GC failed", "error", err)
			return
		}
	}
	w.log.Debug("Value log GC done", "rewritten_files", rounds)
}
