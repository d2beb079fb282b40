// Package endpoint implements the two endpoint layers the spec lays on top of a single
// upstream URL: RateLimitedEndpoint (admission control and 429 backoff) and CachingEndpoint
// (cache-before-call, cache-after-success). QuorumRouter and RetryingCaller, one layer up,
// fan these out and retry across them; this package never knows about other URLs.
package endpoint

import (
	"time"

	"github.com/omahs/relayer/internal/callobs"
	"github.com/omahs/relayer/internal/chaintypes"
	"github.com/omahs/relayer/internal/kvcache"
)

// Options configures a single upstream endpoint. Callers assemble one Options per URL in
// a chain's RouterConfig.
type Options struct {
	URL       string
	ChainID   chaintypes.ChainID
	Timeout   time.Duration
	Retries   int
	LogEveryN int

	MaxConcurrency int

	Cache            kvcache.Cache
	CacheNamespace   string
	ProviderCacheTTL time.Duration
	BlockNumberTTL   time.Duration
	MaxReorgDistance uint64

	// OnObservation, if set, is invoked once per attempt with the outcome — the hook the
	// demo binary uses to feed Prometheus metrics without endpoint needing to import the
	// metrics package.
	OnObservation func(callobs.CallObservation)

	// OnRateLimit, if set, is invoked every LogEveryN-th sustained-429 event for this
	// endpoint, with the credential-stripped host — the hook that drives the rate-limit
	// counter without endpoint needing to import the metrics package.
	OnRateLimit func(endpoint string)

	// OnInFlight, if set, is invoked whenever this endpoint's in-flight count changes, with
	// the credential-stripped host and the new count — the hook that drives the in-flight
	// gauge.
	OnInFlight func(endpoint string, n int64)
}
