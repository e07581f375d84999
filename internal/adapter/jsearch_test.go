package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func jsearchOpts(baseURL string, queries ...string) JSearchOptions {
	return JSearchOptions{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Queries:    queries,
		MinDelay:   time.Millisecond,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
	}
}

func searchPayload(ids ...string) string {
	body := `{"data":[`
	for i, id := range ids {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"job_id":%q,"employer_name":"Acme","job_title":"SWE %s","job_city":"Austin","job_state":"TX","job_apply_link":"https://acme.example/%s"}`, id, id, id)
	}
	return body + `]}`
}

func TestJSearchFetch_SequentialQueries(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query().Get("query")
		queries = append(queries, q)
		w.Write([]byte(searchPayload(q + "-1")))
	}))
	defer srv.Close()

	a := NewJSearchAdapter(jsearchOpts(srv.URL, "software", "data science"), srv.Client(), discardLogger())
	jobs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if len(queries) != 2 || queries[0] != "software" || queries[1] != "data science" {
		t.Fatalf("queries not issued in order: %v", queries)
	}
	if jobs[0].Location != "Austin, TX" {
		t.Errorf("location join wrong: %q", jobs[0].Location)
	}
}

func TestJSearchFetch_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(searchPayload("a")))
	}))
	defer srv.Close()

	retries := 0
	opts := jsearchOpts(srv.URL, "software")
	opts.OnRetry = func() { retries++ }

	a := NewJSearchAdapter(opts, srv.Client(), discardLogger())
	jobs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job after retry, got %d", len(jobs))
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 requests, got %d", calls.Load())
	}
	if retries != 1 {
		t.Fatalf("expected 1 recorded retry, got %d", retries)
	}
}

func TestJSearchFetch_PartialSuccessOnFailedKeyword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(searchPayload(r.URL.Query().Get("query"))))
	}))
	defer srv.Close()

	a := NewJSearchAdapter(jsearchOpts(srv.URL, "good", "broken", "also-good"), srv.Client(), discardLogger())
	jobs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("keyword failure must not fail the fetch: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected results from the 2 working keywords, got %d", len(jobs))
	}
}

func TestJSearchFetch_AuthFailureStopsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewJSearchAdapter(jsearchOpts(srv.URL, "a", "b", "c"), srv.Client(), discardLogger())
	jobs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("auth failure is terminal but not an error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
	// No retries on 403, and remaining keywords are skipped.
	if calls.Load() != 1 {
		t.Fatalf("expected a single request, got %d", calls.Load())
	}
}

func TestJSearchFetch_DedupsByJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Both keywords return the same record.
		w.Write([]byte(searchPayload("same-id")))
	}))
	defer srv.Close()

	a := NewJSearchAdapter(jsearchOpts(srv.URL, "software", "engineer"), srv.Client(), discardLogger())
	jobs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected cross-keyword dedup, got %d jobs", len(jobs))
	}
}

func TestJSearchFetch_MalformedBodyNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data": not json`))
	}))
	defer srv.Close()

	a := NewJSearchAdapter(jsearchOpts(srv.URL, "software"), srv.Client(), discardLogger())
	jobs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("single-keyword failure keeps the fetch alive: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
	if calls.Load() != 1 {
		t.Fatalf("malformed payload must not be retried, got %d requests", calls.Load())
	}
}

func TestJSearchFetch_MissingAPIKey(t *testing.T) {
	opts := jsearchOpts("http://unused.example", "software")
	opts.APIKey = ""

	a := NewJSearchAdapter(opts, http.DefaultClient, discardLogger())
	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
