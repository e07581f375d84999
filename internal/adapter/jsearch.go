package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/avirj/libra/internal/model"
	"github.com/avirj/libra/internal/normalize"
	"github.com/avirj/libra/internal/ratelimit"
)

// DefaultJSearchURL is the hosted search endpoint.
const DefaultJSearchURL = "https://api.openwebninja.com/jsearch/search"

// DefaultQueries is used when the caller supplies no keyword list.
var DefaultQueries = []string{"software", "data science", "marketing"}

// JSearchOptions configures the query-source adapter.
type JSearchOptions struct {
	BaseURL    string
	APIKey     string
	Queries    []string
	DatePosted string        // "all", "today", "3days", "week", "month"
	MinDelay   time.Duration // mandatory gap between requests
	MaxRetries int           // attempts per keyword on transient failure
	Backoff    time.Duration // per-attempt backoff unit on 429
	OnRetry    func()        // run-statistics hook, may be nil
}

// JSearchAdapter issues one request per keyword, strictly sequentially, with
// an enforced minimum delay between requests. Its retries are internal: the
// rate-limit obligation to the API does not compose with an outer retry
// decorator.
type JSearchAdapter struct {
	opts    JSearchOptions
	client  *http.Client
	limiter *ratelimit.HostLimiter
	logger  *slog.Logger
}

// NewJSearchAdapter creates the query-source adapter, filling option defaults.
func NewJSearchAdapter(opts JSearchOptions, client *http.Client, logger *slog.Logger) *JSearchAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultJSearchURL
	}
	if len(opts.Queries) == 0 {
		opts.Queries = DefaultQueries
	}
	if opts.DatePosted == "" {
		opts.DatePosted = "week"
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 2 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 5 * time.Second
	}
	return &JSearchAdapter{
		opts:    opts,
		client:  client,
		limiter: ratelimit.New(opts.MinDelay),
		logger:  logger,
	}
}

func (a *JSearchAdapter) Source() model.Source { return model.SourceJSearch }

// Fetch runs every configured keyword query in order and returns the union,
// deduplicated by the API's own job identifier. A keyword whose retries are
// exhausted costs only its own results: whatever earlier keywords collected
// is returned as partial success.
func (a *JSearchAdapter) Fetch(ctx context.Context) ([]model.Job, error) {
	if a.opts.APIKey == "" {
		return nil, &model.FetchError{Source: a.Source(), Err: errors.New("api key not configured")}
	}

	seen := make(map[string]bool)
	var jobs []model.Job

	for i, query := range a.opts.Queries {
		a.logger.Debug("jsearch query", "index", i+1, "total", len(a.opts.Queries), "query", query)

		raw, err := a.search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return jobs, fmt.Errorf("jsearch cancelled: %w", ctx.Err())
			}
			var httpErr *model.HTTPError
			if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
				// Bad credentials fail every remaining keyword the same way.
				a.logger.Error("jsearch auth rejected", "status", httpErr.StatusCode)
				return jobs, nil
			}
			a.logger.Warn("jsearch query failed, keeping earlier results", "query", query, "error", err)
			continue
		}

		for _, r := range raw {
			if r.JobID == "" || seen[r.JobID] {
				continue
			}
			seen[r.JobID] = true
			jobs = append(jobs, normalize.FromSearchJob(r))
		}
	}

	a.logger.Info("jsearch fetch complete", "unique", len(jobs), "queries", len(a.opts.Queries))
	return jobs, nil
}

type jsearchResponse struct {
	Data []normalize.SearchJob `json:"data"`
}

// search fetches one keyword page, retrying transient failures with linearly
// increasing waits. Auth failures and malformed payloads are not retried.
func (a *JSearchAdapter) search(ctx context.Context, query string) ([]normalize.SearchJob, error) {
	var lastErr error

	for attempt := 1; attempt <= a.opts.MaxRetries; attempt++ {
		if err := a.limiter.WaitURL(ctx, a.opts.BaseURL); err != nil {
			return nil, err
		}

		raw, err := a.searchOnce(ctx, query)
		if err == nil {
			return raw, nil
		}
		if !transient(err) {
			return nil, err
		}
		lastErr = err

		if attempt < a.opts.MaxRetries {
			wait := time.Duration(attempt) * a.opts.Backoff
			a.logger.Warn("jsearch transient failure, backing off",
				"query", query,
				"attempt", attempt,
				"max_retries", a.opts.MaxRetries,
				"wait", wait,
				"error", err,
			)
			if a.opts.OnRetry != nil {
				a.opts.OnRetry()
			}
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("jsearch backoff cancelled: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}

	return nil, fmt.Errorf("jsearch %q: %d attempts exhausted: %w", query, a.opts.MaxRetries, lastErr)
}

func (a *JSearchAdapter) searchOnce(ctx context.Context, query string) ([]normalize.SearchJob, error) {
	params := url.Values{
		"query":       {query},
		"page":        {"1"},
		"num_pages":   {"1"},
		"date_posted": {a.opts.DatePosted},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("jsearch request: %w", err)
	}
	req.Header.Set("X-API-Key", a.opts.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jsearch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var body jsearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("jsearch decode: %w", err)
	}
	return body.Data, nil
}

// transient reports whether an error is worth another attempt: rate limiting,
// server errors, and network failures. Everything else is permanent.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return isTransientStatus(httpErr.StatusCode)
	}
	// Malformed payloads are permanent; anything else is assumed network-level.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}
	return true
}
