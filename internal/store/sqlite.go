package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/avirj/libra/internal/model"
)

// SQLiteStore is the zero-dependency local backend, with the same upsert
// contract as the PostgreSQL store. Tags are stored as a JSON array.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ model.JobStore = (*SQLiteStore)(nil)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	company     TEXT NOT NULL,
	title       TEXT NOT NULL,
	location    TEXT NOT NULL DEFAULT '',
	link        TEXT NOT NULL UNIQUE,
	sponsorship TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	remote      INTEGER NOT NULL DEFAULT 0,
	date_posted TIMESTAMP,
	description TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the jobs table exists.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating jobs table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating jobs index: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

const sqliteUpsert = `
INSERT INTO jobs (id, company, title, location, link, sponsorship, source, remote, date_posted, description, tags)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(link) DO UPDATE SET
	company     = excluded.company,
	title       = excluded.title,
	location    = excluded.location,
	sponsorship = excluded.sponsorship,
	source      = excluded.source,
	remote      = excluded.remote,
	date_posted = excluded.date_posted,
	description = excluded.description,
	tags        = excluded.tags,
	updated_at  = CURRENT_TIMESTAMP`

// UpsertJobs writes the record set in one transaction, rolling back the
// whole batch on any row failure. Records without a link are rejected.
func (s *SQLiteStore) UpsertJobs(ctx context.Context, jobs []model.Job) (model.UpsertResult, error) {
	var res model.UpsertResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	for _, j := range jobs {
		if j.Link == "" {
			res.Rejected++
			continue
		}

		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM jobs WHERE link = ?)", j.Link).Scan(&exists)
		if err != nil {
			return model.UpsertResult{}, fmt.Errorf("checking %s: %w", j.Link, err)
		}

		tags, err := json.Marshal(orEmpty(j.Tags))
		if err != nil {
			return model.UpsertResult{}, fmt.Errorf("encoding tags for %s: %w", j.Link, err)
		}

		_, err = tx.ExecContext(ctx, sqliteUpsert,
			uuid.NewString(), j.Company, j.Title, j.Location, j.Link,
			string(j.Sponsorship), string(j.Source), j.Remote, j.PostedAt,
			j.Description, string(tags),
		)
		if err != nil {
			return model.UpsertResult{}, fmt.Errorf("upserting %s: %w", j.Link, err)
		}

		if exists {
			res.Updated++
		} else {
			res.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return model.UpsertResult{}, fmt.Errorf("commit upsert tx: %w", err)
	}

	s.logger.Info("bulk upsert complete",
		"inserted", res.Inserted, "updated", res.Updated, "rejected", res.Rejected)
	return res, nil
}

func orEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// ListJobs serves the read-API filters over the persisted set.
func (s *SQLiteStore) ListJobs(ctx context.Context, filter model.JobFilter) ([]model.StoredJob, error) {
	var (
		conds []string
		args  []any
	)

	if filter.Company != "" {
		conds = append(conds, "LOWER(company) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Company)+"%")
	}
	if filter.Sponsorship != model.SponsorshipUnclassified {
		conds = append(conds, "sponsorship = ?")
		args = append(args, string(filter.Sponsorship))
	}
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Remote != nil {
		conds = append(conds, "remote = ?")
		args = append(args, *filter.Remote)
	}
	if filter.Keyword != "" {
		conds = append(conds,
			"(LOWER(company) LIKE ? OR LOWER(title) LIKE ? OR LOWER(location) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Keyword) + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	query := `SELECT id, company, title, location, link, sponsorship, source, remote,
		date_posted, description, tags, created_at, updated_at FROM jobs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.StoredJob
	for rows.Next() {
		job, err := scanStoredJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJob fetches a single job by its storage identifier.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.StoredJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, company, title, location, link,
		sponsorship, source, remote, date_posted, description, tags, created_at, updated_at
		FROM jobs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting job %s: %w", id, err)
		}
		return nil, sql.ErrNoRows
	}
	job, err := scanStoredJob(rows)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func scanStoredJob(rows *sql.Rows) (model.StoredJob, error) {
	var (
		job        model.StoredJob
		source     string
		sponsor    string
		datePosted sql.NullTime
		tagsJSON   string
	)
	err := rows.Scan(&job.ID, &job.Company, &job.Title, &job.Location, &job.Link,
		&sponsor, &source, &job.Remote, &datePosted, &job.Description, &tagsJSON,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return model.StoredJob{}, fmt.Errorf("scanning job row: %w", err)
	}

	job.Source = model.Source(source)
	job.Sponsorship = model.Sponsorship(sponsor)
	if datePosted.Valid {
		t := datePosted.Time
		job.PostedAt = &t
	}
	if err := json.Unmarshal([]byte(tagsJSON), &job.Tags); err != nil {
		return model.StoredJob{}, fmt.Errorf("decoding tags for %s: %w", job.ID, err)
	}
	return job, nil
}

const sqliteStats = `
SELECT
	COUNT(*),
	SUM(CASE WHEN sponsorship = 'Likely sponsorship' THEN 1 ELSE 0 END),
	SUM(CASE WHEN remote THEN 1 ELSE 0 END),
	SUM(CASE WHEN source = 'simplify' THEN 1 ELSE 0 END),
	SUM(CASE WHEN source = 'jsearch' THEN 1 ELSE 0 END),
	COUNT(DISTINCT company)
FROM jobs`

// Stats returns the aggregate rollup over the persisted set.
func (s *SQLiteStore) Stats(ctx context.Context) (model.StoreStats, error) {
	var (
		stats                                   model.StoreStats
		sponsored, remote, simplify, jsearchCnt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, sqliteStats).Scan(
		&stats.TotalJobs, &sponsored, &remote, &simplify, &jsearchCnt, &stats.UniqueCompanies)
	if err != nil {
		return stats, fmt.Errorf("store stats: %w", err)
	}
	stats.WithSponsorship = int(sponsored.Int64)
	stats.RemoteJobs = int(remote.Int64)
	stats.FromSimplify = int(simplify.Int64)
	stats.FromJSearch = int(jsearchCnt.Int64)
	return stats, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
