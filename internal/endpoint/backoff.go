package endpoint

import (
	"context"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// rateLimitOnlyRetryPolicy retries exactly the case the spec calls out: an HTTP 429 from
// the upstream. Network errors, timeouts, and non-429 HTTP statuses surface immediately —
// retrying those is RetryingCaller's job, one layer up, where a failed attempt can fall
// through to a different upstream URL entirely.
func rateLimitOnlyRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, nil
	}
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	return false, nil
}

// jitteredExponentialBackoff returns a retryablehttp.Backoff implementation following
// baseDelay = 1s * 2^attempt, wait = baseDelay + uniform(0, baseDelay). min/max are ignored;
// the spec's delay curve is attempt-indexed, not clamped to a fixed band. Every logEveryN-th
// rate-limit event invokes onRateLimit so the caller can log at a fixed cadence instead of
// once per attempt, which would flood logs under sustained throttling.
func jitteredExponentialBackoff(logEveryN int, onRateLimit func(attempt int)) func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	var seen int

	return func(_ time.Duration, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		seen++
		if onRateLimit != nil && logEveryN > 0 && seen%logEveryN == 0 {
			onRateLimit(seen)
		}

		base := time.Duration(1000<<uint(attemptNum)) * time.Millisecond
		jitter := time.Duration(rand.Float64() * float64(base))
		return base + jitter
	}
}

// hostOf strips credentials and path from a URL for safe use in logs and error strings,
// per the spec's requirement that upstream URLs never leak into observability output.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown-host"
	}
	return u.Host
}
