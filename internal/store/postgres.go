package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/avirj/libra/internal/model"
)

// PostgresStore persists jobs in a PostgreSQL table keyed by the listing
// link.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ model.JobStore = (*PostgresStore)(nil)

const pgSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	company     TEXT NOT NULL,
	title       TEXT NOT NULL,
	location    TEXT,
	link        TEXT NOT NULL UNIQUE,
	sponsorship TEXT,
	source      TEXT NOT NULL,
	remote      BOOLEAN NOT NULL DEFAULT FALSE,
	date_posted TIMESTAMPTZ,
	description TEXT,
	tags        TEXT[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var pgIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company)",
	"CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs(source)",
	"CREATE INDEX IF NOT EXISTS idx_jobs_sponsorship ON jobs(sponsorship)",
	"CREATE INDEX IF NOT EXISTS idx_jobs_remote ON jobs(remote)",
	"CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at)",
}

const pgUpdatedAtTrigger = `
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
	NEW.updated_at = NOW();
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS update_jobs_updated_at ON jobs;
CREATE TRIGGER update_jobs_updated_at
BEFORE UPDATE ON jobs
FOR EACH ROW
EXECUTE FUNCTION update_updated_at_column();
`

// NewPostgresStore connects to PostgreSQL and ensures the jobs table, its
// indexes, and the updated_at trigger exist.
func NewPostgresStore(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	for _, stmt := range append([]string{pgSchema}, pgIndexes...) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensuring jobs schema: %w", err)
		}
	}
	if _, err := db.Exec(pgUpdatedAtTrigger); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring updated_at trigger: %w", err)
	}

	logger.Info("connected to postgres store")
	return &PostgresStore{db: db, logger: logger}, nil
}

const pgUpsert = `
INSERT INTO jobs (company, title, location, link, sponsorship, source, remote, date_posted, description, tags)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (link) DO UPDATE SET
	company     = EXCLUDED.company,
	title       = EXCLUDED.title,
	location    = EXCLUDED.location,
	sponsorship = EXCLUDED.sponsorship,
	source      = EXCLUDED.source,
	remote      = EXCLUDED.remote,
	date_posted = EXCLUDED.date_posted,
	description = EXCLUDED.description,
	tags        = EXCLUDED.tags
RETURNING (xmax = 0)`

// UpsertJobs writes the record set in one transaction: insert on a new link,
// update all mutable fields on a known one. A failed row rolls back the whole
// batch. Records without a link are rejected, not written.
func (s *PostgresStore) UpsertJobs(ctx context.Context, jobs []model.Job) (model.UpsertResult, error) {
	var res model.UpsertResult

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	for _, j := range jobs {
		if j.Link == "" {
			res.Rejected++
			continue
		}

		tags := j.Tags
		if tags == nil {
			tags = []string{}
		}

		var inserted bool
		err := tx.QueryRowContext(ctx, pgUpsert,
			j.Company, j.Title, j.Location, j.Link, string(j.Sponsorship),
			string(j.Source), j.Remote, j.PostedAt, j.Description, pq.Array(tags),
		).Scan(&inserted)
		if err != nil {
			return model.UpsertResult{}, fmt.Errorf("upserting %s: %w", j.Link, err)
		}

		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return model.UpsertResult{}, fmt.Errorf("commit upsert tx: %w", err)
	}

	s.logger.Info("bulk upsert complete",
		"inserted", res.Inserted, "updated", res.Updated, "rejected", res.Rejected)
	return res, nil
}

type pgJobRow struct {
	ID          string         `db:"id"`
	Company     string         `db:"company"`
	Title       string         `db:"title"`
	Location    string         `db:"location"`
	Link        string         `db:"link"`
	Sponsorship string         `db:"sponsorship"`
	Source      string         `db:"source"`
	Remote      bool           `db:"remote"`
	DatePosted  *time.Time     `db:"date_posted"`
	Description string         `db:"description"`
	Tags        pq.StringArray `db:"tags"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r pgJobRow) stored() model.StoredJob {
	return model.StoredJob{
		ID: r.ID,
		Job: model.Job{
			Company:     r.Company,
			Title:       r.Title,
			Location:    r.Location,
			Link:        r.Link,
			Source:      model.Source(r.Source),
			Remote:      r.Remote,
			PostedAt:    r.DatePosted,
			Description: r.Description,
			Tags:        []string(r.Tags),
			Sponsorship: model.Sponsorship(r.Sponsorship),
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ListJobs serves the read-API filters over the persisted set.
func (s *PostgresStore) ListJobs(ctx context.Context, filter model.JobFilter) ([]model.StoredJob, error) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Company != "" {
		add("company ILIKE $%d", "%"+filter.Company+"%")
	}
	if filter.Sponsorship != model.SponsorshipUnclassified {
		add("sponsorship = $%d", string(filter.Sponsorship))
	}
	if filter.Source != "" {
		add("source = $%d", string(filter.Source))
	}
	if filter.Remote != nil {
		add("remote = $%d", *filter.Remote)
	}
	if filter.Keyword != "" {
		pattern := "%" + filter.Keyword + "%"
		args = append(args, pattern)
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(company ILIKE $%d OR title ILIKE $%d OR location ILIKE $%d OR description ILIKE $%d)",
			n, n, n, n))
	}

	query := "SELECT * FROM jobs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []pgJobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	jobs := make([]model.StoredJob, len(rows))
	for i, r := range rows {
		jobs[i] = r.stored()
	}
	return jobs, nil
}

// GetJob fetches a single job by its storage identifier.
func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.StoredJob, error) {
	var row pgJobRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM jobs WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("getting job %s: %w", id, err)
	}
	job := row.stored()
	return &job, nil
}

const pgStats = `
SELECT
	COUNT(*) AS total_jobs,
	COUNT(*) FILTER (WHERE sponsorship = 'Likely sponsorship') AS with_sponsorship,
	COUNT(*) FILTER (WHERE remote) AS remote_jobs,
	COUNT(*) FILTER (WHERE source = 'simplify') AS from_simplify,
	COUNT(*) FILTER (WHERE source = 'jsearch') AS from_jsearch,
	COUNT(DISTINCT company) AS unique_companies
FROM jobs`

// Stats returns the aggregate rollup over the persisted set.
func (s *PostgresStore) Stats(ctx context.Context) (model.StoreStats, error) {
	var stats model.StoreStats
	if err := s.db.GetContext(ctx, &stats, pgStats); err != nil {
		return stats, fmt.Errorf("store stats: %w", err)
	}
	return stats, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
