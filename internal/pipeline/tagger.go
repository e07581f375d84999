package pipeline

import (
	"log/slog"

	"github.com/avirj/libra/internal/model"
	"github.com/avirj/libra/internal/sponsor"
)

// Tagger annotates unique records against the employer reference set. The
// set is loaded afresh on every Tag call so a scheduled run picks up
// reference files edited between ticks; the mtime-checked cache keeps an
// unchanged reload cheap. The set is never mutated after construction.
type Tagger struct {
	threshold int
	fuzzy     bool
	logger    *slog.Logger

	build func() (*sponsor.ReferenceSet, error)
}

// NewTagger creates a tagger that builds its reference set from opts on
// every use. fuzzy selects MatchesApprox over HasExact.
func NewTagger(opts sponsor.Options, threshold int, fuzzy bool, logger *slog.Logger) *Tagger {
	if threshold <= 0 {
		threshold = sponsor.DefaultFuzzyThreshold
	}
	return &Tagger{
		threshold: threshold,
		fuzzy:     fuzzy,
		logger:    logger,
		build:     func() (*sponsor.ReferenceSet, error) { return sponsor.Load(opts) },
	}
}

// NewTaggerWithSet creates a tagger over an already-built reference set.
func NewTaggerWithSet(set *sponsor.ReferenceSet, threshold int, fuzzy bool, logger *slog.Logger) *Tagger {
	t := NewTagger(sponsor.Options{}, threshold, fuzzy, logger)
	t.build = func() (*sponsor.ReferenceSet, error) { return set, nil }
	return t
}

// Tag classifies every record in place using the record's display company
// name (the reference set applies its own normalization). Returns the number
// tagged as likely sponsors. A reference-set build failure is the only error:
// the caller degrades to an untagged run rather than aborting.
func (t *Tagger) Tag(jobs []model.Job) (int, error) {
	set, err := t.build()
	if err != nil {
		return 0, err
	}

	tagged := 0
	for i := range jobs {
		if t.matches(set, jobs[i].Company) {
			jobs[i].Sponsorship = model.SponsorshipLikely
			tagged++
		} else {
			jobs[i].Sponsorship = model.SponsorshipNoRecord
		}
	}

	t.logger.Info("sponsorship tagging complete", "likely", tagged, "total", len(jobs))
	return tagged, nil
}

func (t *Tagger) matches(set *sponsor.ReferenceSet, company string) bool {
	if t.fuzzy {
		return set.MatchesApprox(company, t.threshold)
	}
	return set.HasExact(company)
}
