// Package registry implements the process-wide, lazily-constructed router cache described
// in §4.5. It is handed to consumers as an explicit dependency rather than reached via
// package-level state, while still memoizing exactly one router per (chain-id,
// cache-enabled) key for the life of the process.
package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/omahs/relayer/internal/callobs"
	"github.com/omahs/relayer/internal/chaintypes"
	"github.com/omahs/relayer/internal/config"
	"github.com/omahs/relayer/internal/endpoint"
	"github.com/omahs/relayer/internal/kvcache"
	"github.com/omahs/relayer/internal/quorum"
)

// Observer lets the registry report per-attempt outcomes and per-call disagreements to
// whatever the process wires in (Prometheus metrics, the drift exporter) without importing
// either package directly, keeping the dependency direction consumer-owned.
type Observer struct {
	OnObservation  func(callobs.CallObservation)
	OnDisagreement func(chainID, method string, agreedValue json.RawMessage, agreedProviders []string, disagreed map[string]string)
	OnRateLimit    func(chainID, endpoint string)
	OnInFlight     func(chainID, endpoint string, n int64)
}

// key is the registry's memoization key: a router is specific to both the chain and
// whether a KV cache handle is wired into it.
type key struct {
	chainID      chaintypes.ChainID
	cacheEnabled bool
}

// Registry is the process-wide EndpointRegistry. A sync.RWMutex is used because lookups of
// already-constructed routers vastly outnumber the one-time insert per key.
type Registry struct {
	mu         sync.RWMutex
	routers    map[key]*quorum.Router
	reorgTable *config.ReorgTable
	cache      kvcache.Cache
	log        *logrus.Entry
	observer   Observer
}

// New constructs a Registry. cache may be nil, meaning no process has a KV cache wired in —
// every router built from this registry is then cache-disabled regardless of the
// NODE_DISABLE_PROVIDER_CACHING setting. observer's fields may be nil individually; each is
// only invoked if set.
func New(reorgTable *config.ReorgTable, cache kvcache.Cache, observer Observer, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		routers:    make(map[key]*quorum.Router),
		reorgTable: reorgTable,
		cache:      cache,
		observer:   observer,
		log:        log,
	}
}

// Get returns the memoized router for chainID, constructing and memoizing one from
// environment configuration if absent.
func (r *Registry) Get(chainID chaintypes.ChainID) (*quorum.Router, error) {
	k := r.keyFor(chainID)

	r.mu.RLock()
	router, ok := r.routers[k]
	r.mu.RUnlock()
	if ok {
		return router, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock: another goroutine may have constructed it while we
	// waited, and the registry guarantees at most one live router per key.
	if router, ok := r.routers[k]; ok {
		return router, nil
	}

	router, err := r.build(chainID, k.cacheEnabled)
	if err != nil {
		return nil, err
	}
	r.routers[k] = router
	return router, nil
}

// GetCached returns the memoized router for chainID without constructing one, raising an
// error if absent.
func (r *Registry) GetCached(chainID chaintypes.ChainID) (*quorum.Router, error) {
	k := r.keyFor(chainID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	router, ok := r.routers[k]
	if !ok {
		return nil, fmt.Errorf("registry: no router constructed yet for chain %s", chainID)
	}
	return router, nil
}

func (r *Registry) keyFor(chainID chaintypes.ChainID) key {
	return key{chainID: chainID, cacheEnabled: r.cache != nil}
}

// dispatchObservation forwards o to the configured observer, dropping anything missing the
// fields a consumer needs to make sense of it.
func (r *Registry) dispatchObservation(o callobs.CallObservation) {
	if r.observer.OnObservation == nil || !o.IsValid() {
		return
	}
	r.observer.OnObservation(o)
}

func (r *Registry) build(chainID chaintypes.ChainID, cacheEnabled bool) (*quorum.Router, error) {
	cfg, err := config.LoadRouterConfig(chainID, r.reorgTable, cacheEnabled)
	if err != nil {
		return nil, fmt.Errorf("registry: loading config for chain %s: %w", chainID, err)
	}

	cache := r.cache
	if !cfg.CachingEnabled {
		cache = nil
	}

	endpoints := make([]quorum.Endpoint, 0, len(cfg.URLs))
	for _, url := range cfg.URLs {
		opts := endpoint.Options{
			URL:              url,
			ChainID:          chainID,
			Timeout:          cfg.Timeout,
			Retries:          cfg.Retries,
			LogEveryN:        cfg.LogEveryNRateLimitErrors,
			MaxConcurrency:   cfg.MaxConcurrency,
			Cache:            cache,
			CacheNamespace:   cfg.CacheNamespace,
			ProviderCacheTTL: cfg.ProviderCacheTTL,
			BlockNumberTTL:   cfg.BlockNumberTTL,
			MaxReorgDistance: cfg.MaxReorgDistance,
			OnObservation:    r.dispatchObservation,
			OnRateLimit: func(host string) {
				if r.observer.OnRateLimit != nil {
					r.observer.OnRateLimit(string(chainID), host)
				}
			},
			OnInFlight: func(host string, n int64) {
				if r.observer.OnInFlight != nil {
					r.observer.OnInFlight(string(chainID), host, n)
				}
			},
		}
		rateLimited := endpoint.NewRateLimitedEndpoint(opts, r.log)
		endpoints = append(endpoints, endpoint.NewCachingEndpoint(rateLimited, opts))
	}

	router := quorum.New(chainID, endpoints, cfg.NodeQuorumThreshold, cfg.Retries, cfg.RetryDelay, r.log)
	if r.observer.OnDisagreement != nil {
		router.OnDisagreement(func(method string, agreedValue json.RawMessage, agreedProviders []string, disagreed map[string]string) {
			r.observer.OnDisagreement(string(chainID), method, agreedValue, agreedProviders, disagreed)
		})
	}
	return router, nil
}
