package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/avirj/libra/internal/pipeline"
)

// Scheduler owns the main loop: runs the pipeline on an interval.
type Scheduler struct {
	pipeline *pipeline.Pipeline
	interval time.Duration
	logger   *slog.Logger
}

// New creates a scheduler that runs the pipeline at the given interval.
func New(p *pipeline.Pipeline, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pipeline: p,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval.String())

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runOnce(ctx)
		}
	}
}

// runOnce executes a single pipeline run. Run errors are logged, not fatal:
// the next tick gets a fresh attempt.
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	stats, err := s.pipeline.Run(ctx)
	if err != nil {
		s.logger.Error("aggregation run failed", "stage", stats.Stage.String(), "error", err)
		return
	}
	s.logger.Info("aggregation run complete",
		"fetched", stats.TotalFetched,
		"unique", stats.Unique,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"duration", stats.Duration.Round(time.Millisecond).String(),
	)
}
