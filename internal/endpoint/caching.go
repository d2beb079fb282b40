package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/omahs/relayer/internal/callobs"
)

// CachingEndpoint wraps a RateLimitedEndpoint with a read-through cache. Per §4.2, the only
// cacheable method is eth_getLogs whose entire block range sits below the chain's reorg
// horizon — everything else passes straight through to the underlying endpoint.
type CachingEndpoint struct {
	inner *RateLimitedEndpoint
	opts  Options
}

// NewCachingEndpoint wraps inner. If opts.Cache is nil, Send degrades to a pure passthrough.
func NewCachingEndpoint(inner *RateLimitedEndpoint, opts Options) *CachingEndpoint {
	return &CachingEndpoint{inner: inner, opts: opts}
}

// Host returns the credential-stripped host of the wrapped endpoint.
func (e *CachingEndpoint) Host() string {
	return e.inner.Host()
}

// InFlight returns the wrapped endpoint's in-flight count.
func (e *CachingEndpoint) InFlight() int64 { return e.inner.InFlight() }

// Capacity returns the wrapped endpoint's concurrency ceiling.
func (e *CachingEndpoint) Capacity() int64 { return e.inner.Capacity() }

func (e *CachingEndpoint) headCacheKey() string {
	return fmt.Sprintf("%s,%s,%s:eth_blockNumber,head", e.opts.CacheNamespace, hostOf(e.opts.URL), e.opts.ChainID)
}

// resultCacheKey follows the spec's literal format:
// "<namespace>,<host(URL)>,<chain-id>:<method>,<params-json>".
func (e *CachingEndpoint) resultCacheKey(method string, params []any) (string, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("endpoint: encoding cache key params: %w", err)
	}
	return fmt.Sprintf("%s,%s,%s:%s,%s", e.opts.CacheNamespace, hostOf(e.opts.URL), e.opts.ChainID, method, encoded), nil
}

// currentHead returns a lower bound on the chain's current head, amortized across concurrent
// callers with a BlockNumberTTL cache entry. A stale-but-low value is safe; an exact value is
// not required.
func (e *CachingEndpoint) currentHead(ctx context.Context) (uint64, error) {
	key := e.headCacheKey()
	if raw, hit, err := e.opts.Cache.Get(ctx, key); err == nil && hit {
		head, decodeErr := hexutil.DecodeUint64(raw)
		if decodeErr == nil {
			return head, nil
		}
	}

	result, err := e.inner.Send(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	var hexHead string
	if err := json.Unmarshal(result, &hexHead); err != nil {
		return 0, fmt.Errorf("endpoint: decoding eth_blockNumber result: %w", err)
	}
	head, err := hexutil.DecodeUint64(hexHead)
	if err != nil {
		return 0, fmt.Errorf("endpoint: parsing eth_blockNumber result: %w", err)
	}

	_ = e.opts.Cache.Set(ctx, key, hexHead, int64(e.opts.BlockNumberTTL.Seconds()))
	return head, nil
}

// getLogsRange inspects an eth_getLogs parameter list for a cacheable block range. It
// returns ok=false (no error) when the range is absent or expressed as a non-numeric tag
// like "latest" — those calls are simply not cacheable. An inverted range (fromBlock >
// toBlock) is a programmer error and is returned as err, per §4.2 point 4.
func getLogsRange(params []any) (fromBlock, toBlock uint64, ok bool, err error) {
	if len(params) < 1 {
		return 0, 0, false, nil
	}
	filter, isObject := params[0].(map[string]any)
	if !isObject {
		return 0, 0, false, nil
	}
	fromRaw, hasFrom := filter["fromBlock"].(string)
	toRaw, hasTo := filter["toBlock"].(string)
	if !hasFrom || !hasTo {
		return 0, 0, false, nil
	}

	fromBlock, fromErr := hexutil.DecodeUint64(fromRaw)
	toBlock, toErr := hexutil.DecodeUint64(toRaw)
	if fromErr != nil || toErr != nil {
		return 0, 0, false, nil
	}
	if fromBlock > toBlock {
		return 0, 0, false, fmt.Errorf("endpoint: eth_getLogs fromBlock %d is after toBlock %d", fromBlock, toBlock)
	}
	return fromBlock, toBlock, true, nil
}

// Send implements the read-through/write-through cache policy described in §4.2. Only a
// JSON-RPC result that resolved without error is ever written back to the cache; a semantic
// JSON-RPC error surfaces from Send exactly as it does on an uncached miss.
func (e *CachingEndpoint) Send(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if e.opts.Cache == nil || method != "eth_getLogs" {
		return e.inner.Send(ctx, method, params)
	}

	_, toBlock, cacheable, err := getLogsRange(params)
	if err != nil {
		return nil, err
	}
	if !cacheable {
		return e.inner.Send(ctx, method, params)
	}

	head, err := e.currentHead(ctx)
	if err != nil || head < e.opts.MaxReorgDistance || toBlock >= head-e.opts.MaxReorgDistance {
		// Range too recent to be reorg-safe (or head currently unknowable): skip the cache
		// entirely rather than risk serving a value the chain could still rewrite.
		return e.inner.Send(ctx, method, params)
	}

	key, err := e.resultCacheKey(method, params)
	if err != nil {
		return e.inner.Send(ctx, method, params)
	}

	start := time.Now()
	if raw, hit, cacheErr := e.opts.Cache.Get(ctx, key); cacheErr == nil && hit {
		if e.opts.OnObservation != nil {
			e.opts.OnObservation(callobs.NewSuccess(e.Host(), string(e.opts.ChainID), method, time.Since(start), true))
		}
		return json.RawMessage(raw), nil
	}

	result, err := e.inner.Send(ctx, method, params)
	if err != nil {
		return nil, err
	}

	_ = e.opts.Cache.Set(ctx, key, string(result), int64(e.opts.ProviderCacheTTL/time.Second))
	return result, nil
}
