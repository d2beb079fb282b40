// Package retrycaller implements the retry layer the spec describes in §4.3: it owns no
// policy beyond "retry every failure mode up to N times with a fixed delay between attempts."
// Classifying failures as retryable or fatal is explicitly not this layer's job — the
// rate-limit path inside the endpoint layer already special-cases 429s.
package retrycaller

import (
	"context"
	"encoding/json"
	"time"
)

// Sender is the single operation every endpoint layer exposes. RateLimitedEndpoint,
// CachingEndpoint, and any future wrapper all satisfy this without retrycaller needing to
// know which one it was handed.
type Sender interface {
	Send(ctx context.Context, method string, params []any) (json.RawMessage, error)
}

// RetryingCaller retries a logical call against one endpoint up to Retries times, waiting
// RetryDelay between attempts.
type RetryingCaller struct {
	endpoint   Sender
	retries    int
	retryDelay time.Duration
}

// New constructs a RetryingCaller for one endpoint. retries must be >= 0; retryDelay must be
// >= 0; both are validated at router-construction time (see internal/config), not here.
func New(endpoint Sender, retries int, retryDelay time.Duration) *RetryingCaller {
	return &RetryingCaller{endpoint: endpoint, retries: retries, retryDelay: retryDelay}
}

// Call performs the logical call, retrying on every failure mode up to retries times (so at
// most retries+1 total attempts). It returns the last error seen if every attempt fails.
func (c *RetryingCaller) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		result, err := c.endpoint.Send(ctx, method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == c.retries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	return nil, lastErr
}
