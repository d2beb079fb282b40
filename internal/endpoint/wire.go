package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// jsonrpcRequest is the standard JSON-RPC 2.0 request envelope.
type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// jsonrpcResponse is the standard JSON-RPC 2.0 response envelope.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

// jsonrpcError is the standard JSON-RPC 2.0 error object.
type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *jsonrpcError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// wireClient performs the raw HTTPS JSON-RPC 2.0 roundtrip for one upstream URL. It owns
// the retry/backoff transport described in §4.1 but knows nothing about concurrency
// ceilings, caching, or quorum — those are the concerns of the layers built on top of it.
type wireClient struct {
	url        string
	httpClient *http.Client
}

// newWireClient builds the HTTP transport for one upstream: gzip acceptance is the
// net/http default (DisableCompression is left false), and the retryablehttp.Client's
// CheckRetry/Backoff hooks implement the spec's rate-limit-only backoff (see backoff.go).
func newWireClient(url string, timeout time.Duration, retries int, logEveryN int, onRateLimit func(attempt int)) *wireClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.Logger = nil
	rc.CheckRetry = rateLimitOnlyRetryPolicy
	rc.Backoff = jitteredExponentialBackoff(logEveryN, onRateLimit)
	rc.HTTPClient.Timeout = timeout

	return &wireClient{
		url:        url,
		httpClient: rc.StandardClient(),
	}
}

// call performs one JSON-RPC request. A non-empty JSON-RPC error object is surfaced as a
// Go error — per the spec's cache-write-conditionality decision, such a response never
// reaches CachingEndpoint as a cacheable "result".
func (c *wireClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	reqBody, err := json.Marshal(jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("endpoint: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("endpoint: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("endpoint: %s: %w", hostOf(c.url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint: %s: unexpected HTTP status %d", hostOf(c.url), resp.StatusCode)
	}

	var rpcResp jsonrpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("endpoint: %s: decoding response: %w", hostOf(c.url), err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("endpoint: %s: %w", hostOf(c.url), rpcResp.Error)
	}
	return rpcResp.Result, nil
}
