package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/avirj/libra/internal/model"
)

// newPostgresTestStore connects to the database named by LIBRA_TEST_POSTGRES_DSN
// and truncates the jobs table. The test is skipped when the variable is unset.
func newPostgresTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("LIBRA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LIBRA_TEST_POSTGRES_DSN not set")
	}

	s, err := NewPostgresStore(dsn, discardLogger())
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := s.db.Exec("TRUNCATE jobs"); err != nil {
		t.Fatalf("truncate jobs: %v", err)
	}
	return s
}

func TestPostgresUpsertJobs_InsertThenUpdate(t *testing.T) {
	s := newPostgresTestStore(t)
	ctx := context.Background()

	res, err := s.UpsertJobs(ctx, sampleJobs())
	if err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}
	if res.Inserted != 2 || res.Updated != 0 {
		t.Fatalf("first pass: %+v", res)
	}

	jobs := sampleJobs()
	jobs[0].Title = "Senior Software Engineer"
	res, err = s.UpsertJobs(ctx, jobs)
	if err != nil {
		t.Fatalf("UpsertJobs second pass: %v", err)
	}
	if res.Inserted != 0 || res.Updated != 2 {
		t.Fatalf("second pass: %+v", res)
	}

	stored, err := s.ListJobs(ctx, model.JobFilter{Company: "stripe"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(stored) != 1 || stored[0].Title != "Senior Software Engineer" {
		t.Fatalf("update not applied: %+v", stored)
	}
}

func TestPostgresUpsertJobs_RejectsMissingLink(t *testing.T) {
	s := newPostgresTestStore(t)

	res, err := s.UpsertJobs(context.Background(), []model.Job{
		{Company: "NoLink Co", Title: "SWE", Location: "Austin, TX"},
	})
	if err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}
	if res.Rejected != 1 || res.Inserted != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPostgresListAndGet(t *testing.T) {
	s := newPostgresTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertJobs(ctx, sampleJobs()); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}

	remote := true
	byRemote, err := s.ListJobs(ctx, model.JobFilter{Remote: &remote})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(byRemote) != 1 || byRemote[0].Company != "Ramp" {
		t.Fatalf("remote filter: %+v", byRemote)
	}

	all, err := s.ListJobs(ctx, model.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	got, err := s.GetJob(ctx, all[0].ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Link != all[0].Link {
		t.Fatalf("wrong job returned: %+v", got)
	}

	if _, err := s.GetJob(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestPostgresStats(t *testing.T) {
	s := newPostgresTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertJobs(ctx, sampleJobs()); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalJobs != 2 || stats.WithSponsorship != 1 || stats.UniqueCompanies != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
