package pipeline

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avirj/libra/internal/model"
)

// Stage is the orchestrator's position in the run.
type Stage int

const (
	StageIdle Stage = iota
	StageFetching
	StageDeduplicating
	StageTagging
	StagePersisting
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageFetching:
		return "fetching"
	case StageDeduplicating:
		return "deduplicating"
	case StageTagging:
		return "tagging"
	case StagePersisting:
		return "persisting"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats are the counters for one run. They are created at run start, mutated
// only by the orchestrator and the stage it is invoking, and final once Run
// returns. Retries is the exception: adapters running concurrently record
// their retries through the atomic RecordRetry.
type Stats struct {
	Stage     Stage
	StartedAt time.Time
	Duration  time.Duration

	BySource     map[model.Source]int
	TotalFetched int
	SourceErrors int
	retries      atomic.Int64
	sourceDrops  atomic.Int64

	LinkRejected int // no usable link, rejected before dedup
	Invalid      int // empty identity-key component
	Duplicates   int
	Unique       int

	Tagged       int // records classified as likely sponsorship
	TaggerFailed bool

	Inserted int
	Updated  int
	Rejected int
}

func newStats() *Stats {
	return &Stats{
		Stage:     StageIdle,
		StartedAt: time.Now(),
		BySource:  make(map[model.Source]int),
	}
}

// RecordRetry counts one retried request. Safe for concurrent use.
func (s *Stats) RecordRetry() { s.retries.Add(1) }

// Retries returns the number of retried requests across all sources.
func (s *Stats) Retries() int { return int(s.retries.Load()) }

// RecordSourceDrop counts one record an adapter rejected during validation.
// Safe for concurrent use.
func (s *Stats) RecordSourceDrop() { s.sourceDrops.Add(1) }

// SourceDrops returns the number of records rejected by adapter validation.
func (s *Stats) SourceDrops() int { return int(s.sourceDrops.Load()) }

// Summary renders the free-text run report sent to the notification sink.
func (s *Stats) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "libra run %s in %s\n", s.Stage, s.Duration.Round(time.Millisecond))
	for _, src := range []model.Source{model.SourceSimplify, model.SourceJSearch} {
		if n, ok := s.BySource[src]; ok {
			fmt.Fprintf(&b, "  %s: %d fetched\n", src, n)
		}
	}
	fmt.Fprintf(&b, "  total fetched: %d (%d source errors, %d retries, %d dropped at source)\n",
		s.TotalFetched, s.SourceErrors, s.Retries(), s.SourceDrops())
	fmt.Fprintf(&b, "  unique: %d (%d duplicates, %d invalid, %d without link)\n",
		s.Unique, s.Duplicates, s.Invalid, s.LinkRejected)
	if s.TaggerFailed {
		b.WriteString("  sponsorship: unavailable (reference data unreadable)\n")
	} else {
		fmt.Fprintf(&b, "  likely sponsorship: %d/%d\n", s.Tagged, s.Unique)
	}
	fmt.Fprintf(&b, "  store: %d inserted, %d updated, %d rejected",
		s.Inserted, s.Updated, s.Rejected)

	return b.String()
}
