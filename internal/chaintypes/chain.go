// Package chaintypes contains the chain-identifier types shared across the RPC fabric.
package chaintypes

// ChainID identifies a blockchain network, e.g. "1" for Ethereum mainnet or "137" for Polygon.
// It is kept as a string rather than a numeric type because chain identifiers are sourced
// directly from environment variable suffixes and config keys.
type ChainID string
