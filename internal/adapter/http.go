package adapter

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/avirj/libra/internal/model"
)

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// statusError converts a non-2xx response into an HTTPError carrying the
// Retry-After hint so retry policies can inspect it.
func statusError(resp *http.Response) *model.HTTPError {
	return &model.HTTPError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
}

// isTransientStatus reports whether a status code represents a failure worth
// retrying: 429 and 5xx. Auth errors and other 4xx are permanent.
func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
