package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoEndpoint indicates none of the candidate RPC endpoints answered.
var ErrNoEndpoint = errors.New("no reachable rpc endpoint")

// SelectEndpoint probes candidates in order with eth_blockNumber and returns
// a client for the first that answers. Empty candidates are skipped.
// Probes are not retried; the returned client uses opts as given.
func SelectEndpoint(ctx context.Context, candidates []string, opts ClientOptions) (*Client, error) {
	probeOpts := opts
	probeOpts.MaxRetries = 0

	var lastErr error
	for _, url := range candidates {
		if url == "" {
			continue
		}

		var head string
		if err := NewClient(url, probeOpts).Call(ctx, "eth_blockNumber", nil, &head); err != nil {
			slog.Debug("rpc endpoint unavailable", "url", url, "error", err)
			lastErr = err
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return NewClient(url, opts), nil
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: no candidates", ErrNoEndpoint)
	}
	return nil, fmt.Errorf("%w: %w", ErrNoEndpoint, lastErr)
}
