// Package callobs defines the observation record emitted for every upstream attempt and
// every cache hit, feeding the Prometheus metrics without changing the stable consumer
// contract.
package callobs

import (
	"time"
)

// CallObservation records the outcome of a single attempt against a single upstream.
type CallObservation struct {
	// Endpoint is the upstream host (credentials stripped) the attempt targeted.
	Endpoint string `json:"endpoint"`

	// ChainID is the chain the endpoint serves.
	ChainID string `json:"chain_id"`

	// Method is the JSON-RPC method name.
	Method string `json:"method"`

	// Latency is how long the attempt took, from dispatch to settlement.
	Latency time.Duration `json:"latency"`

	// Success is true iff the attempt returned a usable result.
	Success bool `json:"success"`

	// Error holds the failure text when Success is false.
	Error string `json:"error,omitempty"`

	// CacheHit is true iff the result was served from the KV cache without an upstream call.
	CacheHit bool `json:"cache_hit,omitempty"`

	// ObservedAt is the wall-clock time the attempt completed.
	ObservedAt time.Time `json:"observed_at"`
}

// NewSuccess creates an observation for a successful attempt.
func NewSuccess(endpoint, chainID, method string, latency time.Duration, cacheHit bool) CallObservation {
	return CallObservation{
		Endpoint:   endpoint,
		ChainID:    chainID,
		Method:     method,
		Latency:    latency,
		Success:    true,
		CacheHit:   cacheHit,
		ObservedAt: time.Now(),
	}
}

// NewFailure creates an observation for a failed attempt.
func NewFailure(endpoint, chainID, method string, latency time.Duration, err error) CallObservation {
	return CallObservation{
		Endpoint:   endpoint,
		ChainID:    chainID,
		Method:     method,
		Latency:    latency,
		Success:    false,
		Error:      err.Error(),
		ObservedAt: time.Now(),
	}
}

// IsValid reports whether the observation has the minimum fields needed to be reported.
func (o CallObservation) IsValid() bool {
	return o.Endpoint != "" && o.Method != "" && !o.ObservedAt.IsZero()
}
