package quorum

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omahs/relayer/internal/chaintypes"
)

// fakeEndpoint is a scripted Endpoint for exercising Router without any real HTTP traffic.
type fakeEndpoint struct {
	host  string
	value json.RawMessage
	err   error
	calls int32
}

func newFake(host, value string) *fakeEndpoint {
	return &fakeEndpoint{host: host, value: json.RawMessage(value)}
}

func newFailingFake(host string, err error) *fakeEndpoint {
	return &fakeEndpoint{host: host, err: err}
}

func (f *fakeEndpoint) Send(_ context.Context, _ string, _ []any) (json.RawMessage, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.value, nil
}

func (f *fakeEndpoint) Host() string { return f.host }

func (f *fakeEndpoint) callCount() int32 { return atomic.LoadInt32(&f.calls) }

func newTestRouter(chainID string, q int, endpoints ...Endpoint) *Router {
	return New(chaintypes.ChainID(chainID), endpoints, q, 0, 0, nil)
}

// Scenario 1: Q=2, 3 endpoints, A and B agree. C must never be queried.
func TestRouter_RequiredSlotsAgree_FallbackUntouched(t *testing.T) {
	a := newFake("a", `"0x10"`)
	b := newFake("b", `"0x10"`)
	c := newFake("c", `"0x10"`)

	router := newTestRouter("1", 2, a, b, c)
	result, err := router.Send(context.Background(), "eth_getLogs", nil)

	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x10"`), result)
	assert.EqualValues(t, 0, c.callCount(), "fallback must not be consumed when required slots agree")
}

// Scenario 2: A errors, B and C (fallback) agree.
func TestRouter_FailedRequiredSlot_PromotesFallback(t *testing.T) {
	a := newFailingFake("a", errors.New("connection refused"))
	b := newFake("b", `"0x10"`)
	c := newFake("c", `"0x10"`)

	router := newTestRouter("1", 2, a, b, c)
	result, err := router.Send(context.Background(), "eth_getLogs", nil)

	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x10"`), result)
	assert.EqualValues(t, 1, c.callCount(), "c must be consumed as a's fallback")
}

// Scenario 3: A and C agree, B disagrees; quorum is still reached on the majority value.
func TestRouter_DisagreementUnderQuorum_StillResolves(t *testing.T) {
	a := newFake("a", `"0x10"`)
	b := newFake("b", `"0x11"`)
	c := newFake("c", `"0x10"`)

	router := newTestRouter("1", 2, a, b, c)
	result, err := router.Send(context.Background(), "eth_getLogs", nil)

	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x10"`), result)
}

// Scenario 4: miner differs between the two required responses for eth_getBlockByNumber;
// the result-equality relation must still accept them as equal.
func TestRouter_MinerExclusion_GetBlockByNumber(t *testing.T) {
	a := newFake("a", `{"miner":"0xaa","hash":"0x1"}`)
	b := newFake("b", `{"miner":"0xbb","hash":"0x1"}`)

	router := newTestRouter("1", 2, a, b)
	result, err := router.Send(context.Background(), "eth_getBlockByNumber", []any{"0x10", false})

	require.NoError(t, err)
	assert.JSONEq(t, `{"miner":"0xaa","hash":"0x1"}`, string(result))
}

// Scenario 5: three distinct values among three endpoints never form quorum.
func TestRouter_NoQuorum_AllDistinct(t *testing.T) {
	a := newFake("a", `"0x10"`)
	b := newFake("b", `"0x11"`)
	c := newFake("c", `"0x12"`)

	router := newTestRouter("1", 2, a, b, c)
	_, err := router.Send(context.Background(), "eth_getLogs", nil)

	require.Error(t, err)
	var quorumErr *QuorumNotMetError
	require.ErrorAs(t, err, &quorumErr)
}

func TestRouter_QOne_FirstSuccessWins_NoFallback(t *testing.T) {
	a := newFake("a", `"0x10"`)
	b := newFake("b", `"0x99"`)

	router := newTestRouter("1", 1, a, b)
	result, err := router.Send(context.Background(), "eth_blockNumber", nil)

	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x10"`), result)
	assert.EqualValues(t, 0, b.callCount())
}

func TestRouter_QEqualsEndpointCount_AnyFailureRejects(t *testing.T) {
	a := newFake("a", `"0x10"`)
	b := newFailingFake("b", errors.New("timeout"))

	router := newTestRouter("1", 2, a, b)
	_, err := router.Send(context.Background(), "eth_getLogs", nil)

	require.Error(t, err)
	var notEnough *NotEnoughProvidersError
	require.ErrorAs(t, err, &notEnough)
}

func TestRouter_NoEndpointUsedTwice(t *testing.T) {
	a := newFailingFake("a", errors.New("down"))
	b := newFake("b", `"0x10"`)

	router := newTestRouter("1", 1, a, b)
	result, err := router.Send(context.Background(), "eth_blockNumber", nil)

	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x10"`), result)
	assert.EqualValues(t, 1, b.callCount(), "b must be dispatched at most once for this call")
}
