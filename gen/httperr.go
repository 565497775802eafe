package gen

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/BaSui01/filmforge/types"
)

// defaultRetryAfter is suggested when a vendor throttles without saying
// how long to wait.
const defaultRetryAfter = 30 * time.Second

// HTTPError normalizes a non-2xx vendor response into the shared error
// taxonomy: 401/403 become auth errors, 429 a rate-limit error carrying the
// Retry-After hint, 5xx a retryable SERVICE_UNAVAILABLE, and everything
// else a REQUEST_ERROR.
func HTTPError(provider string, resp *http.Response, body []byte) *types.Error {
	msg := fmt.Sprintf("%s: status=%d body=%s", provider, resp.StatusCode, truncate(body, 512))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.NewAuthError(provider, msg).WithHTTPStatus(resp.StatusCode)

	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewRateLimitError(provider, retryAfterHint(resp)).
			WithHTTPStatus(resp.StatusCode).
			WithDetail("body", string(truncate(body, 512)))

	case resp.StatusCode >= 500:
		return types.NewError(types.ErrServiceUnavailable, msg).
			WithProvider(provider).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(true)

	default:
		return types.NewError(types.ErrRequest, msg).
			WithProvider(provider).
			WithHTTPStatus(resp.StatusCode)
	}
}

// retryAfterHint reads the Retry-After header, accepting both delta-seconds
// and HTTP-date forms.
func retryAfterHint(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
