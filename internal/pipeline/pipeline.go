// Package pipeline owns one aggregation run: fetch from every source, fan in,
// deduplicate, tag sponsorship, and upsert into the store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avirj/libra/internal/dedup"
	"github.com/avirj/libra/internal/model"
)

// Pipeline sequences the run stages and aggregates run statistics.
type Pipeline struct {
	adapters []model.SourceAdapter
	tagger   *Tagger
	store    model.JobStore
	notifier model.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	current *Stats // stats of the in-flight run, nil between runs
}

// New wires a pipeline with all its collaborators. Sources are registered
// afterwards with AddSource so their retry hooks can point back at the
// pipeline.
func New(tagger *Tagger, store model.JobStore, notifier model.Notifier, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		tagger:   tagger,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// AddSource registers a source adapter for subsequent runs.
func (p *Pipeline) AddSource(a model.SourceAdapter) {
	p.adapters = append(p.adapters, a)
}

// RecordRetry counts one retried upstream request against the in-flight run.
// Outside a run it is a no-op. Safe for concurrent use; intended as the
// OnRetry hook of retrying adapters and decorators.
func (p *Pipeline) RecordRetry() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.RecordRetry()
	}
}

// RecordSourceDrop counts one record rejected by adapter validation against
// the in-flight run. Outside a run it is a no-op; intended as the OnDrop
// hook of adapters that validate rows at parse time.
func (p *Pipeline) RecordSourceDrop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.RecordSourceDrop()
	}
}

// Run executes one full pipeline pass. It always returns statistics, partial
// ones when the run is cancelled; the returned error is non-nil only for
// failures that leave the run indeterminate (persistence) or cancellation.
// Zero records from every source is a recoverable empty result, not a failure.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	stats := newStats()
	p.mu.Lock()
	p.current = stats
	p.mu.Unlock()
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		p.mu.Lock()
		p.current = nil
		p.mu.Unlock()
	}()

	stats.Stage = StageFetching
	fetched := p.fetchAll(ctx, stats)
	stats.TotalFetched = len(fetched)

	if err := ctx.Err(); err != nil {
		stats.Stage = StageFailed
		return stats, fmt.Errorf("run cancelled during fetch: %w", err)
	}

	if len(fetched) == 0 {
		p.logger.Warn("no records from any source")
		stats.Stage = StageDone
		p.notify(stats)
		return stats, nil
	}

	// Records without a usable link cannot be persisted; reject them before
	// they reach the deduplicator.
	usable := fetched[:0]
	for _, job := range fetched {
		if job.Link == "" {
			stats.LinkRejected++
			continue
		}
		usable = append(usable, job)
	}

	stats.Stage = StageDeduplicating
	res := dedup.Unique(usable)
	stats.Duplicates = res.Duplicates
	stats.Invalid = res.Invalid
	stats.Unique = len(res.Jobs)
	p.logger.Info("deduplication complete",
		"in", len(usable), "unique", stats.Unique,
		"duplicates", res.Duplicates, "invalid", res.Invalid)

	stats.Stage = StageTagging
	tagged, err := p.tagger.Tag(res.Jobs)
	if err != nil {
		// Degrade rather than abort: records stay unclassified.
		p.logger.Error("sponsorship data unavailable, leaving records unclassified", "error", err)
		stats.TaggerFailed = true
	}
	stats.Tagged = tagged

	if err := ctx.Err(); err != nil {
		stats.Stage = StageFailed
		return stats, fmt.Errorf("run cancelled before persist: %w", err)
	}

	stats.Stage = StagePersisting
	result, err := p.store.UpsertJobs(ctx, res.Jobs)
	if err != nil {
		stats.Stage = StageFailed
		p.notify(stats)
		return stats, fmt.Errorf("persisting records: %w", err)
	}
	stats.Inserted = result.Inserted
	stats.Updated = result.Updated
	stats.Rejected = result.Rejected

	stats.Stage = StageDone
	p.notify(stats)

	p.logger.Info("run complete",
		"fetched", stats.TotalFetched,
		"unique", stats.Unique,
		"likely_sponsorship", stats.Tagged,
		"inserted", stats.Inserted,
		"updated", stats.Updated,
		"duration", stats.Duration,
	)
	return stats, nil
}

// fetchAll runs every adapter concurrently and fans their output in. Each
// source is isolated: one source failing or returning nothing never affects
// another's fetch.
func (p *Pipeline) fetchAll(ctx context.Context, stats *Stats) []model.Job {
	var (
		mu  sync.Mutex
		all []model.Job
		g   errgroup.Group
	)

	for _, a := range p.adapters {
		g.Go(func() error {
			jobs, err := a.Fetch(ctx)
			if err != nil {
				p.logger.Error("source fetch failed", "source", a.Source(), "error", err)
				mu.Lock()
				stats.SourceErrors++
				mu.Unlock()
				return nil // isolation: never cancel sibling sources
			}

			mu.Lock()
			all = append(all, jobs...)
			stats.BySource[a.Source()] += len(jobs)
			mu.Unlock()

			p.logger.Info("source fetch complete", "source", a.Source(), "records", len(jobs))
			return nil
		})
	}

	_ = g.Wait() // goroutines always return nil
	return all
}

// notify sends the run summary; delivery failure is logged, never propagated.
func (p *Pipeline) notify(stats *Stats) {
	if p.notifier == nil {
		return
	}
	stats.Duration = time.Since(stats.StartedAt)
	if err := p.notifier.Notify(stats.Summary()); err != nil {
		p.logger.Warn("run summary notification failed", "error", err)
	}
}
