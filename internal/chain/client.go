// Package chain reads vault state from an EVM node over JSON-RPC.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mtlprog/vaultfee/internal/metrics"
)

// ErrRPC indicates the node answered with a JSON-RPC error object.
var ErrRPC = errors.New("rpc error")

// Caller performs a single JSON-RPC call and decodes its result into dest.
type Caller interface {
	Call(ctx context.Context, method string, params []any, dest any) error
}

// ClientOptions tunes the HTTP transport and retry policy.
type ClientOptions struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	Metrics    *metrics.Metrics
}

// Client is a JSON-RPC 2.0 client over HTTP with retry on 429 and transport errors.
type Client struct {
	url        string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	metrics    *metrics.Metrics
	nextID     atomic.Uint64
}

// NewClient creates a client for the node at url.
func NewClient(url string, opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: max(opts.MaxRetries, 0),
		baseDelay:  opts.BaseDelay,
		metrics:    opts.Metrics,
	}
}

// URL returns the node endpoint.
func (c *Client) URL() string {
	return c.url
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorObject `json:"error"`
}

// Call invokes method with params and unmarshals the result into dest.
func (c *Client) Call(ctx context.Context, method string, params []any, dest any) error {
	start := time.Now()
	err := c.call(ctx, method, params, dest)
	c.metrics.ObserveRPC(method, time.Since(start), err)
	return err
}

func (c *Client) call(ctx context.Context, method string, params []any, dest any) error {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	body, err := c.post(ctx, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	var resp rpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parsing %s response: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w: %d %s", method, ErrRPC, resp.Error.Code, resp.Error.Message)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, dest); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

// post sends payload, retrying with exponential backoff on HTTP 429 and
// transport failures.
func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("executing request (attempt %d/%d): %w", attempt+1, c.maxRetries+1, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return body, nil
		case http.StatusTooManyRequests:
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", c.url, attempt+1, c.maxRetries+1)
			continue
		default:
			return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, c.url, string(body))
		}
	}

	return nil, lastErr
}
