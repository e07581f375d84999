// Package dedup collapses the merged stream of normalized records into a
// unique set.
package dedup

import (
	"github.com/avirj/libra/internal/model"
	"github.com/avirj/libra/internal/normalize"
)

// key is the identity tuple deciding that two records describe the same
// listing.
type key struct {
	company  string
	title    string
	location string
}

// Result reports what Unique kept and dropped.
type Result struct {
	Jobs       []model.Job
	Duplicates int // later records sharing an identity key with an earlier one
	Invalid    int // records with an empty identity-key component
}

// Unique applies first-seen-wins deduplication over the concatenated adapter
// output. The identity key is the normalized (company, title, location)
// tuple; records with any empty component are dropped. Output order is
// first-seen order. The policy is deterministic given input order, not a
// content-quality merge.
func Unique(jobs []model.Job) Result {
	seen := make(map[key]bool, len(jobs))
	res := Result{Jobs: make([]model.Job, 0, len(jobs))}

	for _, job := range jobs {
		k := key{
			company:  normalize.Key(job.Company),
			title:    normalize.Key(job.Title),
			location: normalize.Key(job.Location),
		}
		if k.company == "" || k.title == "" || k.location == "" {
			res.Invalid++
			continue
		}
		if seen[k] {
			res.Duplicates++
			continue
		}
		seen[k] = true
		res.Jobs = append(res.Jobs, job)
	}

	return res
}
