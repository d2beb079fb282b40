package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omahs/relayer/internal/chaintypes"
	"github.com/omahs/relayer/internal/config"
)

func testReorgTable(t *testing.T) *config.ReorgTable {
	t.Helper()
	table, err := config.ParseReorgTable([]byte("chains:\n  \"1\": 64\n  \"137\": 256\n"))
	require.NoError(t, err)
	return table
}

func TestRegistry_Get_MemoizesSameRouterInstance(t *testing.T) {
	t.Setenv("NODE_URL_1", "https://rpc-a.example.com")

	reg := New(testReorgTable(t), nil, Observer{}, nil)

	first, err := reg.Get(chaintypes.ChainID("1"))
	require.NoError(t, err)

	second, err := reg.Get(chaintypes.ChainID("1"))
	require.NoError(t, err)

	assert.Same(t, first, second, "Get must return the same memoized router across calls")
}

func TestRegistry_Get_DistinctRoutersPerChain(t *testing.T) {
	t.Setenv("NODE_URL_1", "https://rpc-a.example.com")
	t.Setenv("NODE_URL_137", "https://rpc-b.example.com")

	reg := New(testReorgTable(t), nil, Observer{}, nil)

	chain1, err := reg.Get(chaintypes.ChainID("1"))
	require.NoError(t, err)

	chain137, err := reg.Get(chaintypes.ChainID("137"))
	require.NoError(t, err)

	assert.NotSame(t, chain1, chain137)
}

func TestRegistry_Get_PropagatesConfigError(t *testing.T) {
	reg := New(testReorgTable(t), nil, Observer{}, nil)

	_, err := reg.Get(chaintypes.ChainID("999"))
	require.Error(t, err)
}

func TestRegistry_GetCached_ErrorsWhenAbsent(t *testing.T) {
	reg := New(testReorgTable(t), nil, Observer{}, nil)

	_, err := reg.GetCached(chaintypes.ChainID("1"))
	require.Error(t, err)
}

func TestRegistry_GetCached_ReturnsWhatGetConstructed(t *testing.T) {
	t.Setenv("NODE_URL_1", "https://rpc-a.example.com")

	reg := New(testReorgTable(t), nil, Observer{}, nil)

	built, err := reg.Get(chaintypes.ChainID("1"))
	require.NoError(t, err)

	cached, err := reg.GetCached(chaintypes.ChainID("1"))
	require.NoError(t, err)
	assert.Same(t, built, cached)
}
