package config

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/omahs/relayer/internal/chaintypes"
)

//go:embed reorg.yaml
var defaultReorgYAML []byte

// ReorgTable is the static per-chain MAX_REORG_DISTANCE table shipped with the binary.
// It is read-mostly after construction, so lookups are protected by a plain RWMutex
// rather than anything fancier.
type ReorgTable struct {
	mu   sync.RWMutex
	dist map[chaintypes.ChainID]uint64
}

// reorgDoc mirrors the shape of reorg.yaml: a flat map of chain id to block count.
type reorgDoc struct {
	Chains map[string]uint64 `yaml:"chains"`
}

// LoadDefaultReorgTable parses the table embedded at build time (internal/config/reorg.yaml).
func LoadDefaultReorgTable() (*ReorgTable, error) {
	return ParseReorgTable(defaultReorgYAML)
}

// ParseReorgTable parses a YAML document of the form:
//
//	chains:
//	  "1": 64
//	  "137": 256
func ParseReorgTable(data []byte) (*ReorgTable, error) {
	var doc reorgDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing reorg table: %w", err)
	}

	t := &ReorgTable{dist: make(map[chaintypes.ChainID]uint64, len(doc.Chains))}
	for chainID, blocks := range doc.Chains {
		t.dist[chaintypes.ChainID(chainID)] = blocks
	}
	return t, nil
}

// Lookup returns the reorg distance configured for chainID, and whether it was found.
func (t *ReorgTable) Lookup(chainID chaintypes.ChainID) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.dist[chainID]
	return d, ok
}

// Set installs or overrides the reorg distance for a chain. Used by tests and by
// operators who need to add a chain without rebuilding the binary.
func (t *ReorgTable) Set(chainID chaintypes.ChainID, distance uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dist[chainID] = distance
}
