package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avirj/libra/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubStore struct {
	jobs       []model.StoredJob
	lastFilter model.JobFilter
	stats      model.StoreStats
}

func (s *stubStore) UpsertJobs(context.Context, []model.Job) (model.UpsertResult, error) {
	return model.UpsertResult{}, nil
}

func (s *stubStore) ListJobs(_ context.Context, filter model.JobFilter) ([]model.StoredJob, error) {
	s.lastFilter = filter
	return s.jobs, nil
}

func (s *stubStore) GetJob(_ context.Context, id string) (*model.StoredJob, error) {
	for i := range s.jobs {
		if s.jobs[i].ID == id {
			return &s.jobs[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubStore) Stats(context.Context) (model.StoreStats, error) { return s.stats, nil }
func (s *stubStore) Close() error                                    { return nil }

func storedJob(id, company string) model.StoredJob {
	return model.StoredJob{
		ID: id,
		Job: model.Job{
			Company:  company,
			Title:    "SWE",
			Location: "NYC",
			Link:     "https://example.com/" + id,
			Source:   model.SourceSimplify,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func doRequest(t *testing.T, store model.JobStore, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New(store, discardLogger())
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, &stubStore{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListJobs(t *testing.T) {
	store := &stubStore{jobs: []model.StoredJob{storedJob("a", "Stripe"), storedJob("b", "Ramp")}}
	rec := doRequest(t, store, "/api/v1/jobs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Jobs  []model.StoredJob `json:"jobs"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Jobs, 2)
	assert.Equal(t, 100, store.lastFilter.Limit, "default limit applies")
}

func TestListJobs_QueryFilters(t *testing.T) {
	store := &stubStore{}
	rec := doRequest(t, store, "/api/v1/jobs?company=stripe&sponsorship=Likely+sponsorship&source=jsearch&remote=true&q=intern&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	f := store.lastFilter
	assert.Equal(t, "stripe", f.Company)
	assert.Equal(t, model.SponsorshipLikely, f.Sponsorship)
	assert.Equal(t, model.SourceJSearch, f.Source)
	require.NotNil(t, f.Remote)
	assert.True(t, *f.Remote)
	assert.Equal(t, "intern", f.Keyword)
	assert.Equal(t, 5, f.Limit)
}

func TestListJobs_BadParams(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, doRequest(t, &stubStore{}, "/api/v1/jobs?remote=maybe").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, &stubStore{}, "/api/v1/jobs?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, &stubStore{}, "/api/v1/jobs?limit=abc").Code)
}

func TestListJobs_EmptyStoreReturnsArray(t *testing.T) {
	rec := doRequest(t, &stubStore{}, "/api/v1/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jobs":[]`)
}

func TestGetJob(t *testing.T) {
	store := &stubStore{jobs: []model.StoredJob{storedJob("abc", "Stripe")}}

	rec := doRequest(t, store, "/api/v1/jobs/abc")
	require.Equal(t, http.StatusOK, rec.Code)

	var job model.StoredJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "Stripe", job.Company)

	assert.Equal(t, http.StatusNotFound, doRequest(t, store, "/api/v1/jobs/missing").Code)
}

func TestStats(t *testing.T) {
	store := &stubStore{stats: model.StoreStats{TotalJobs: 7, WithSponsorship: 3}}
	rec := doRequest(t, store, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.StoreStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 7, stats.TotalJobs)
	assert.Equal(t, 3, stats.WithSponsorship)
}
