// Package config loads the RPC fabric's settings from environment variables, with
// per-chain overrides taking precedence over the global default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/omahs/relayer/internal/chaintypes"
)

// RouterConfig holds everything the registry needs to build one QuorumRouter for a chain.
type RouterConfig struct {
	ChainID                  chaintypes.ChainID
	URLs                     []string
	Timeout                  time.Duration
	Retries                  int
	RetryDelay               time.Duration
	NodeQuorumThreshold      int
	MaxConcurrency           int
	CachingEnabled           bool
	CacheNamespace           string
	LogEveryNRateLimitErrors int
	ProviderCacheTTL         time.Duration
	BlockNumberTTL           time.Duration
	MaxReorgDistance         uint64
	RedisAddr                string
}

// GetEnv retrieves an environment variable and whether it exists.
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value.
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value.
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable, interpreted as a count of the given
// unit, as a time.Duration with a default value.
func GetEnvAsDuration(key string, unit time.Duration, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(n) * unit
		}
	}
	return defaultValue
}

// chainSuffixed looks up "<key>_<chainID>" first, falling back to "<key>" if the per-chain
// variant is unset. Per-chain overrides always take precedence over the global default.
func chainSuffixed(key string, chainID chaintypes.ChainID) (string, bool) {
	if v, ok := GetEnv(key + "_" + string(chainID)); ok {
		return v, true
	}
	return GetEnv(key)
}

func chainSuffixedInt(key string, chainID chaintypes.ChainID, defaultValue int) int {
	if v, ok := chainSuffixed(key, chainID); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func chainSuffixedDuration(key string, chainID chaintypes.ChainID, unit time.Duration, defaultValue time.Duration) time.Duration {
	if v, ok := chainSuffixed(key, chainID); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(n) * unit
		}
	}
	return defaultValue
}

// urlsForChain resolves NODE_URLS_<chainId> (JSON array) or NODE_URL_<chainId> (single URL).
// At least one must be set; its absence is a construction-time error.
func urlsForChain(chainID chaintypes.ChainID) ([]string, error) {
	if raw, ok := GetEnv("NODE_URLS_" + string(chainID)); ok && raw != "" {
		var urls []string
		if err := json.Unmarshal([]byte(raw), &urls); err != nil {
			return nil, fmt.Errorf("config: NODE_URLS_%s is not a valid JSON array: %w", chainID, err)
		}
		if len(urls) == 0 {
			return nil, fmt.Errorf("config: NODE_URLS_%s is an empty list", chainID)
		}
		return urls, nil
	}
	if url, ok := GetEnv("NODE_URL_" + string(chainID)); ok && url != "" {
		return []string{url}, nil
	}
	return nil, fmt.Errorf("config: no NODE_URL_%s or NODE_URLS_%s set for chain %s", chainID, chainID, chainID)
}

// LoadRouterConfig reads environment configuration for chainID and resolves the static
// reorg-distance table. cachingEnabled reflects whether a KV-cache handle is available in
// this process (it is not itself an env var; the registry decides this once at startup).
func LoadRouterConfig(chainID chaintypes.ChainID, reorg *ReorgTable, cachingEnabled bool) (RouterConfig, error) {
	urls, err := urlsForChain(chainID)
	if err != nil {
		return RouterConfig{}, err
	}

	maxReorg, ok := reorg.Lookup(chainID)
	if !ok {
		return RouterConfig{}, fmt.Errorf("config: no MAX_REORG_DISTANCE entry for chain %s", chainID)
	}

	if raw, ok := chainSuffixed("NODE_QUORUM", chainID); ok && raw != "" {
		if _, err := strconv.Atoi(raw); err != nil {
			return RouterConfig{}, fmt.Errorf("config: nodeQuorumThreshold must be an integer, got %q", raw)
		}
	}

	cfg := RouterConfig{
		ChainID:                  chainID,
		URLs:                     urls,
		Timeout:                  chainSuffixedDuration("NODE_TIMEOUT", chainID, time.Millisecond, 60*time.Second),
		Retries:                  chainSuffixedInt("NODE_RETRIES", chainID, 2),
		RetryDelay:               chainSuffixedDuration("NODE_RETRY_DELAY", chainID, time.Second, 1*time.Second),
		NodeQuorumThreshold:      chainSuffixedInt("NODE_QUORUM", chainID, 1),
		MaxConcurrency:           chainSuffixedInt("NODE_MAX_CONCURRENCY", chainID, 25),
		CachingEnabled:           cachingEnabled && !GetEnvAsBool("NODE_DISABLE_PROVIDER_CACHING", false),
		CacheNamespace:           GetEnvOrDefault("NODE_PROVIDER_CACHE_NAMESPACE", "DEFAULT_0"),
		LogEveryNRateLimitErrors: GetEnvAsInt("NODE_LOG_EVERY_N_RATE_LIMIT_ERRORS", 100),
		ProviderCacheTTL:         GetEnvAsDuration("PROVIDER_CACHE_TTL", time.Second, 24*time.Hour),
		BlockNumberTTL:           GetEnvAsDuration("BLOCK_NUMBER_TTL", time.Millisecond, 2*time.Second),
		MaxReorgDistance:         maxReorg,
		RedisAddr:                strings.TrimSpace(GetEnvOrDefault("NODE_REDIS_ADDR", "")),
	}

	if err := cfg.Validate(); err != nil {
		return RouterConfig{}, err
	}
	return cfg, nil
}

// Validate checks the construction-time invariants from the error taxonomy: a sub-1 or
// over-|endpoints| quorum threshold; negative retries; negative retry delay; a sub-1
// concurrency ceiling. A non-integer NODE_QUORUM value is rejected earlier, by
// LoadRouterConfig.
func (c RouterConfig) Validate() error {
	if c.NodeQuorumThreshold < 1 {
		return fmt.Errorf("config: nodeQuorumThreshold must be >= 1, got %d", c.NodeQuorumThreshold)
	}
	if c.NodeQuorumThreshold > len(c.URLs) {
		return fmt.Errorf("config: nodeQuorumThreshold (%d) exceeds endpoint count (%d)", c.NodeQuorumThreshold, len(c.URLs))
	}
	if c.Retries < 0 {
		return fmt.Errorf("config: retries must be >= 0, got %d", c.Retries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("config: retryDelay must be >= 0, got %s", c.RetryDelay)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("config: maxConcurrency must be >= 1, got %d", c.MaxConcurrency)
	}
	return nil
}
