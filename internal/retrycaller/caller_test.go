package retrycaller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSender returns errs[i] then results[i] for the i-th call, repeating the last entry
// once the script runs out.
type scriptedSender struct {
	results []json.RawMessage
	errs    []error
	calls   int
}

func (s *scriptedSender) Send(_ context.Context, _ string, _ []any) (json.RawMessage, error) {
	i := s.calls
	if i >= len(s.errs) {
		i = len(s.errs) - 1
	}
	s.calls++
	return s.results[i], s.errs[i]
}

func TestRetryingCaller_SucceedsOnFirstAttempt(t *testing.T) {
	sender := &scriptedSender{results: []json.RawMessage{[]byte(`"0x1"`)}, errs: []error{nil}}
	caller := New(sender, 3, 0)

	result, err := caller.Call(context.Background(), "eth_blockNumber", nil)

	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x1"`), result)
	assert.Equal(t, 1, sender.calls)
}

func TestRetryingCaller_SucceedsAfterTransientFailures(t *testing.T) {
	sender := &scriptedSender{
		results: []json.RawMessage{nil, nil, []byte(`"0x1"`)},
		errs:    []error{errors.New("boom"), errors.New("boom again"), nil},
	}
	caller := New(sender, 3, 0)

	result, err := caller.Call(context.Background(), "eth_blockNumber", nil)

	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"0x1"`), result)
	assert.Equal(t, 3, sender.calls)
}

func TestRetryingCaller_ExhaustsRetries_ReturnsLastError(t *testing.T) {
	sender := &scriptedSender{
		results: []json.RawMessage{nil, nil, nil},
		errs:    []error{errors.New("first"), errors.New("second"), errors.New("third")},
	}
	caller := New(sender, 2, 0)

	_, err := caller.Call(context.Background(), "eth_blockNumber", nil)

	require.Error(t, err)
	assert.Equal(t, "third", err.Error())
	assert.Equal(t, 3, sender.calls, "retries=2 allows at most 3 attempts")
}

func TestRetryingCaller_ZeroRetries_SingleAttempt(t *testing.T) {
	sender := &scriptedSender{results: []json.RawMessage{nil}, errs: []error{errors.New("boom")}}
	caller := New(sender, 0, 0)

	_, err := caller.Call(context.Background(), "eth_blockNumber", nil)

	require.Error(t, err)
	assert.Equal(t, 1, sender.calls)
}

func TestRetryingCaller_RespectsContextCancellation(t *testing.T) {
	sender := &scriptedSender{
		results: []json.RawMessage{nil, nil},
		errs:    []error{errors.New("boom"), errors.New("boom")},
	}
	caller := New(sender, 5, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := caller.Call(ctx, "eth_blockNumber", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
