package store

import (
	"context"

	"github.com/avirj/libra/internal/model"
)

// NopStore is a no-op store used in dry-run mode. Upserts report every record
// as an insert without persisting anything.
type NopStore struct{}

var _ model.JobStore = (*NopStore)(nil)

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) UpsertJobs(_ context.Context, jobs []model.Job) (model.UpsertResult, error) {
	var res model.UpsertResult
	for _, j := range jobs {
		if j.Link == "" {
			res.Rejected++
			continue
		}
		res.Inserted++
	}
	return res, nil
}

func (s *NopStore) ListJobs(context.Context, model.JobFilter) ([]model.StoredJob, error) {
	return nil, nil
}

func (s *NopStore) GetJob(context.Context, string) (*model.StoredJob, error) { return nil, nil }

func (s *NopStore) Stats(context.Context) (model.StoreStats, error) {
	return model.StoreStats{}, nil
}

func (s *NopStore) Close() error { return nil }
