package adapter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avirj/libra/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const listingPage = `<html><body>
<table>
<tr><th>Company</th><th>Role</th><th>Location</th><th>Application</th></tr>
<tr>
  <td><strong>Stripe</strong></td>
  <td>Software Engineering Intern</td>
  <td>San Francisco, CA</td>
  <td><a href="https://stripe.com/jobs/1">Apply</a></td>
</tr>
<tr>
  <td>↳</td>
  <td>Backend Intern</td>
  <td>Seattle, WA</td>
  <td><a href="#top">up</a> <a href="https://stripe.com/jobs/2">Apply</a></td>
</tr>
<tr>
  <td>Databricks 🔥</td>
  <td>Data Intern</td>
  <td>Remote</td>
  <td><a href="https://github.com/SimplifyJobs/repo">repo</a></td>
</tr>
</table>
<table>
<tr><th>Company</th><th>Role</th><th>Location</th><th>Application</th></tr>
<tr>
  <td>↳</td>
  <td>Orphaned Role</td>
  <td>Austin, TX</td>
  <td><a href="https://example.com/3">Apply</a></td>
</tr>
<tr>
  <td>Ramp</td>
  <td>Platform Intern</td>
  <td>New York, NY</td>
  <td><a href="https://ramp.com/jobs/4">Apply</a></td>
</tr>
</table>
</body></html>`

func TestSimplifyFetch_ParsesTables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	a := NewSimplifyAdapter(srv.URL, srv.Client(), nil, discardLogger())
	jobs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Stripe row, its continuation row, and Ramp. The Databricks row has only
	// a github link so it is dropped; the orphaned marker row opens a table
	// with no company to inherit.
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d: %+v", len(jobs), jobs)
	}

	if jobs[0].Company != "Stripe" || jobs[0].Link != "https://stripe.com/jobs/1" {
		t.Errorf("unexpected first job: %+v", jobs[0])
	}

	// The marker row inherits Stripe and skips the same-document anchor.
	if jobs[1].Company != "Stripe" {
		t.Errorf("continuation row did not inherit company: %+v", jobs[1])
	}
	if jobs[1].Title != "Backend Intern" || jobs[1].Link != "https://stripe.com/jobs/2" {
		t.Errorf("unexpected continuation job: %+v", jobs[1])
	}

	if jobs[2].Company != "Ramp" {
		t.Errorf("unexpected last job: %+v", jobs[2])
	}

	for _, j := range jobs {
		if j.Source != model.SourceSimplify {
			t.Errorf("job not stamped with source: %+v", j)
		}
	}
}

func TestSimplifyFetch_GroupingResetsPerTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	a := NewSimplifyAdapter(srv.URL, srv.Client(), nil, discardLogger())
	jobs, _ := a.Fetch(context.Background())

	for _, j := range jobs {
		if j.Title == "Orphaned Role" {
			t.Fatalf("marker row in a fresh table must not inherit across tables: %+v", j)
		}
	}
}

func TestSimplifyFetch_ReportsDroppedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	drops := 0
	a := NewSimplifyAdapter(srv.URL, srv.Client(), func() { drops++ }, discardLogger())
	if _, err := a.Fetch(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The Databricks row (github-only link) and the orphaned marker row.
	if drops != 2 {
		t.Fatalf("expected 2 reported drops, got %d", drops)
	}
}

func TestSimplifyFetch_EmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>nothing here</p></body></html>"))
	}))
	defer srv.Close()

	a := NewSimplifyAdapter(srv.URL, srv.Client(), nil, discardLogger())
	jobs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("empty document is not an error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}

func TestSimplifyFetch_HTTPErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewSimplifyAdapter(srv.URL, srv.Client(), nil, discardLogger())
	_, err := a.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestUsableLink(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"https://stripe.com/jobs/1", true},
		{"#top", false},
		{"", false},
		{"https://github.com/SimplifyJobs/repo", false},
	}
	for _, tt := range tests {
		if got := usableLink(tt.href); got != tt.want {
			t.Errorf("usableLink(%q) = %v, want %v", tt.href, got, tt.want)
		}
	}
}
