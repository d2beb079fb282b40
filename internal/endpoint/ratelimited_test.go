package endpoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omahs/relayer/internal/chaintypes"
)

func rpcOKHandler(result string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  json.RawMessage(result),
		})
	}
}

func TestRateLimitedEndpoint_AdmissionNeverExceedsCapacity(t *testing.T) {
	var current, max int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&current, 1)
		for {
			old := atomic.LoadInt64(&max)
			if n <= old || atomic.CompareAndSwapInt64(&max, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		rpcOKHandler(`"0x1"`)(w, r)
	}))
	defer server.Close()

	ep := NewRateLimitedEndpoint(Options{
		URL:            server.URL,
		ChainID:        chaintypes.ChainID("1"),
		Timeout:        5 * time.Second,
		MaxConcurrency: 3,
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ep.Send(context.Background(), "eth_blockNumber", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&max), int64(3))
	assert.EqualValues(t, 3, ep.Capacity())
	assert.EqualValues(t, 0, ep.InFlight())
}

func TestRateLimitedEndpoint_UnboundedWithoutMaxConcurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(rpcOKHandler(`"0x1"`)))
	defer server.Close()

	ep := NewRateLimitedEndpoint(Options{
		URL:     server.URL,
		ChainID: chaintypes.ChainID("1"),
		Timeout: 5 * time.Second,
	}, nil)

	assert.EqualValues(t, 0, ep.Capacity())
	result, err := ep.Send(context.Background(), "eth_blockNumber", nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x1"`), result)
}

func TestRateLimitedEndpoint_RetriesOn429ThenSucceeds(t *testing.T) {
	var attempts int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		rpcOKHandler(`"0x2"`)(w, r)
	}))
	defer server.Close()

	ep := NewRateLimitedEndpoint(Options{
		URL:     server.URL,
		ChainID: chaintypes.ChainID("1"),
		Timeout: 5 * time.Second,
		Retries: 1,
	}, nil)

	result, err := ep.Send(context.Background(), "eth_blockNumber", nil)

	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x2"`), result)
	assert.EqualValues(t, 2, atomic.LoadInt64(&attempts))
}

func TestRateLimitedEndpoint_NonRateLimitFailureSurfacesImmediately(t *testing.T) {
	var attempts int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ep := NewRateLimitedEndpoint(Options{
		URL:     server.URL,
		ChainID: chaintypes.ChainID("1"),
		Timeout: 5 * time.Second,
		Retries: 3,
	}, nil)

	_, err := ep.Send(context.Background(), "eth_blockNumber", nil)

	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&attempts), "a non-429 failure must not be retried at the wire layer")
}
