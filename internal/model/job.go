package model

import (
	"context"
	"time"
)

// Source identifies the adapter that produced a record.
type Source string

const (
	SourceSimplify Source = "simplify"
	SourceJSearch  Source = "jsearch"
)

// Sponsorship is the classification assigned by the tagger. Adapters must
// leave it at SponsorshipUnclassified.
type Sponsorship string

const (
	SponsorshipUnclassified Sponsorship = ""
	SponsorshipLikely       Sponsorship = "Likely sponsorship"
	SponsorshipNoRecord     Sponsorship = "No record found"
)

// Job is the canonical, source-agnostic representation of a listing after
// normalization.
type Job struct {
	Company     string      `json:"company"` // display form, decorative glyphs stripped
	Title       string      `json:"title"`
	Location    string      `json:"location"` // "Not specified" when the source gave none
	Link        string      `json:"link"`     // canonical apply URL, the natural external identifier
	Source      Source      `json:"source"`
	Remote      bool        `json:"remote"`
	PostedAt    *time.Time  `json:"posted_at,omitempty"` // nullable (not all sources provide this)
	Description string      `json:"description,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Sponsorship Sponsorship `json:"sponsorship"`
}

// StoredJob is a Job as it exists in durable storage, with the identifier and
// timestamps the store owns.
type StoredJob struct {
	ID string `json:"id"`
	Job
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceAdapter fetches listings from one external source. An empty result is
// valid; implementations apply their own timeout and retry policy and tag
// every record with their Source before returning.
type SourceAdapter interface {
	Source() Source
	Fetch(ctx context.Context) ([]Job, error)
}

// UpsertResult reports the outcome of a bulk upsert.
type UpsertResult struct {
	Inserted int
	Updated  int
	Rejected int // records without a usable link, not written
}

// JobFilter narrows read queries against the store. Zero values mean
// "no constraint".
type JobFilter struct {
	Company     string // case-insensitive substring on company
	Sponsorship Sponsorship
	Source      Source
	Remote      *bool
	Keyword     string // free-text across company/title/location/description
	Limit       int
}

// StoreStats is the aggregate rollup over the persisted set.
type StoreStats struct {
	TotalJobs       int `db:"total_jobs" json:"total_jobs"`
	WithSponsorship int `db:"with_sponsorship" json:"with_sponsorship"`
	RemoteJobs      int `db:"remote_jobs" json:"remote_jobs"`
	FromSimplify    int `db:"from_simplify" json:"from_simplify"`
	FromJSearch     int `db:"from_jsearch" json:"from_jsearch"`
	UniqueCompanies int `db:"unique_companies" json:"unique_companies"`
}

// JobStore persists the tagged unique record set and serves read queries.
// UpsertJobs is a single atomic unit: on error nothing is applied. Records
// with an empty Link cannot participate in conflict resolution and are
// rejected, never written under a synthetic identifier.
type JobStore interface {
	UpsertJobs(ctx context.Context, jobs []Job) (UpsertResult, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]StoredJob, error)
	GetJob(ctx context.Context, id string) (*StoredJob, error)
	Stats(ctx context.Context) (StoreStats, error)
	Close() error
}

// Notifier delivers the free-text run summary. Delivery failure must never
// affect pipeline correctness.
type Notifier interface {
	Notify(summary string) error
}
