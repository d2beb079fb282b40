package endpoint

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omahs/relayer/internal/callobs"
)

// RateLimitedEndpoint wraps one upstream URL with a counted admission semaphore and the
// wire layer's rate-limit backoff. Admission is a buffered channel: Go's runtime queues
// blocked senders on a channel in arrival order, so waiters are released first-in-first-out
// once a slot frees up, matching the spec's FIFO admission requirement without a hand-rolled
// queue.
type RateLimitedEndpoint struct {
	opts Options
	wire *wireClient

	admission chan struct{}
	inFlight  int64

	rateLimitHits int64
	log           *logrus.Entry
}

// NewRateLimitedEndpoint constructs the endpoint. A MaxConcurrency of 0 or less means
// unbounded admission — no semaphore is installed.
func NewRateLimitedEndpoint(opts Options, log *logrus.Entry) *RateLimitedEndpoint {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &RateLimitedEndpoint{
		opts: opts,
		log:  log.WithField("endpoint", hostOf(opts.URL)).WithField("chain", string(opts.ChainID)),
	}
	if opts.MaxConcurrency > 0 {
		e.admission = make(chan struct{}, opts.MaxConcurrency)
	}
	e.wire = newWireClient(opts.URL, opts.Timeout, opts.Retries, opts.LogEveryN, e.logRateLimitHit)
	return e
}

func (e *RateLimitedEndpoint) logRateLimitHit(attempt int) {
	atomic.AddInt64(&e.rateLimitHits, 1)
	e.log.WithField("attempt", attempt).Warn("sustained rate limiting from upstream")
	if e.opts.OnRateLimit != nil {
		e.opts.OnRateLimit(e.Host())
	}
}

// InFlight returns the number of requests currently admitted to the upstream.
func (e *RateLimitedEndpoint) InFlight() int64 {
	return atomic.LoadInt64(&e.inFlight)
}

// Capacity returns the concurrency ceiling, or 0 when admission is unbounded.
func (e *RateLimitedEndpoint) Capacity() int64 {
	return int64(cap(e.admission))
}

// URL returns the upstream URL this endpoint calls.
func (e *RateLimitedEndpoint) URL() string {
	return e.opts.URL
}

// Host returns the credential-stripped host, safe for logs and metrics labels.
func (e *RateLimitedEndpoint) Host() string {
	return hostOf(e.opts.URL)
}

// Send performs one JSON-RPC call, blocking for a free admission slot first if the endpoint
// is at its concurrency ceiling. A blocked caller is released in the order it arrived.
func (e *RateLimitedEndpoint) Send(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if e.admission != nil {
		select {
		case e.admission <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		defer func() { <-e.admission }()
	}

	atomic.AddInt64(&e.inFlight, 1)
	e.reportInFlight()
	defer func() {
		atomic.AddInt64(&e.inFlight, -1)
		e.reportInFlight()
	}()

	start := time.Now()
	result, err := e.wire.call(ctx, method, params)
	e.observe(method, start, err)
	return result, err
}

func (e *RateLimitedEndpoint) reportInFlight() {
	if e.opts.OnInFlight != nil {
		e.opts.OnInFlight(e.Host(), e.InFlight())
	}
}

func (e *RateLimitedEndpoint) observe(method string, start time.Time, err error) {
	if e.opts.OnObservation == nil {
		return
	}
	latency := time.Since(start)
	if err != nil {
		e.opts.OnObservation(callobs.NewFailure(e.Host(), string(e.opts.ChainID), method, latency, err))
		return
	}
	e.opts.OnObservation(callobs.NewSuccess(e.Host(), string(e.opts.ChainID), method, latency, false))
}
