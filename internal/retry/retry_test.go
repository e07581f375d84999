package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/avirj/libra/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockAdapter calls a function on each invocation, tracking call count.
type mockAdapter struct {
	calls int
	fn    func(attempt int) ([]model.Job, error)
}

func (m *mockAdapter) Source() model.Source { return "mock" }

func (m *mockAdapter) Fetch(_ context.Context) ([]model.Job, error) {
	m.calls++
	return m.fn(m.calls)
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	jobs := []model.Job{{Company: "Stripe", Title: "Engineer"}}
	mock := &mockAdapter{fn: func(_ int) ([]model.Job, error) {
		return jobs, nil
	}}

	ra := Wrap(mock, 2, 10*time.Millisecond, nil, discardLogger())
	got, err := ra.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Company != "Stripe" {
		t.Fatalf("unexpected jobs: %v", got)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
}

func TestRetry_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	jobs := []model.Job{{Company: "Stripe"}}
	mock := &mockAdapter{fn: func(attempt int) ([]model.Job, error) {
		if attempt == 1 {
			return nil, &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return jobs, nil
	}}

	ra := Wrap(mock, 2, 10*time.Millisecond, nil, discardLogger())
	got, err := ra.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 job, got %d", len(got))
	}
	if mock.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.calls)
	}
}

func TestRetry_DoesNotRetryOn4xx(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.Job, error) {
		return nil, &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	}}

	ra := Wrap(mock, 2, 10*time.Millisecond, nil, discardLogger())
	_, err := ra.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError 404, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
}

func TestRetry_ExhaustedRetriesReturnFetchError(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.Job, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("boom")}
	}}

	ra := Wrap(mock, 2, time.Millisecond, nil, discardLogger())
	_, err := ra.Fetch(context.Background())

	var fetchErr *model.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Source != "mock" {
		t.Fatalf("unexpected source: %s", fetchErr.Source)
	}
	if mock.calls != 3 {
		t.Fatalf("expected 3 calls (1 + 2 retries), got %d", mock.calls)
	}
}

func TestRetry_CountsRetriesViaHook(t *testing.T) {
	mock := &mockAdapter{fn: func(_ int) ([]model.Job, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("boom")}
	}}

	retries := 0
	ra := Wrap(mock, 2, time.Millisecond, func() { retries++ }, discardLogger())
	_, _ = ra.Fetch(context.Background())

	if retries != 2 {
		t.Fatalf("expected hook fired twice, got %d", retries)
	}
}

func TestRetry_DoesNotRetryOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &mockAdapter{fn: func(_ int) ([]model.Job, error) {
		cancel()
		return nil, ctx.Err()
	}}

	ra := Wrap(mock, 3, time.Millisecond, nil, discardLogger())
	_, err := ra.Fetch(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if mock.calls != 1 {
		t.Fatalf("expected no retries after cancellation, got %d calls", mock.calls)
	}
}

func TestRetry_HonorsRetryAfter(t *testing.T) {
	jobs := []model.Job{{Company: "X"}}
	mock := &mockAdapter{fn: func(attempt int) ([]model.Job, error) {
		if attempt == 1 {
			return nil, &model.HTTPError{StatusCode: 429, RetryAfter: 20 * time.Millisecond, Err: errors.New("slow down")}
		}
		return jobs, nil
	}}

	ra := Wrap(mock, 1, time.Hour, nil, discardLogger()) // baseDelay would stall forever
	start := time.Now()
	got, err := ra.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 job, got %d", len(got))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Retry-After not honored, waited %v", elapsed)
	}
}
