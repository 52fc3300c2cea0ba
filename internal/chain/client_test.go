package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtlprog/vaultfee/internal/metrics"
)

func rpcServer(t *testing.T, handle func(method string, params []json.RawMessage) (any, *rpcErrorObject)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, rpcErr := handle(req.Method, req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClientCallSuccess(t *testing.T) {
	server := rpcServer(t, func(method string, _ []json.RawMessage) (any, *rpcErrorObject) {
		if method != "eth_blockNumber" {
			t.Errorf("method = %q, want eth_blockNumber", method)
		}
		return "0x10", nil
	})
	defer server.Close()

	client := NewClient(server.URL, ClientOptions{MaxRetries: 3, BaseDelay: 10 * time.Millisecond})
	var head string
	if err := client.Call(context.Background(), "eth_blockNumber", nil, &head); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if head != "0x10" {
		t.Errorf("result = %q, want 0x10", head)
	}
}

func TestClientRetryOn429(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`rate limited`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, ClientOptions{MaxRetries: 3, BaseDelay: 10 * time.Millisecond})
	var out string
	if err := client.Call(context.Background(), "eth_blockNumber", nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClientMaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, ClientOptions{MaxRetries: 2, BaseDelay: 10 * time.Millisecond})
	err := client.Call(context.Background(), "eth_call", nil, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := attempts.Load(); got != 3 { // initial + 2 retries
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClientNon429ErrorIsNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`boom`))
	}))
	defer server.Close()

	client := NewClient(server.URL, ClientOptions{MaxRetries: 3, BaseDelay: 10 * time.Millisecond})
	if err := client.Call(context.Background(), "eth_call", nil, nil); err == nil {
		t.Fatal("expected error for 500, got nil")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestClientRPCErrorObject(t *testing.T) {
	server := rpcServer(t, func(string, []json.RawMessage) (any, *rpcErrorObject) {
		return nil, &rpcErrorObject{Code: -32000, Message: "execution reverted"}
	})
	defer server.Close()

	client := NewClient(server.URL, ClientOptions{})
	err := client.Call(context.Background(), "eth_call", nil, nil)
	if !errors.Is(err, ErrRPC) {
		t.Fatalf("error = %v, want ErrRPC", err)
	}
}

func TestClientContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, ClientOptions{MaxRetries: 5, BaseDelay: time.Second})
	err := client.Call(ctx, "eth_call", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestClientRecordsMetrics(t *testing.T) {
	server := rpcServer(t, func(string, []json.RawMessage) (any, *rpcErrorObject) {
		return "0x1", nil
	})
	defer server.Close()

	m := metrics.New()
	client := NewClient(server.URL, ClientOptions{Metrics: m})
	if err := client.Call(context.Background(), "eth_blockNumber", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "vaultfee_rpc_calls_total" {
			found = true
		}
	}
	if !found {
		t.Error("vaultfee_rpc_calls_total not recorded")
	}
}

func TestSelectEndpoint(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	up := rpcServer(t, func(string, []json.RawMessage) (any, *rpcErrorObject) {
		return "0x10", nil
	})
	defer up.Close()

	client, err := SelectEndpoint(context.Background(), []string{"", down.URL, up.URL}, ClientOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.URL() != up.URL {
		t.Errorf("selected %s, want %s", client.URL(), up.URL)
	}
}

func TestSelectEndpointNoneReachable(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	_, err := SelectEndpoint(context.Background(), []string{down.URL}, ClientOptions{})
	if !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("error = %v, want ErrNoEndpoint", err)
	}

	_, err = SelectEndpoint(context.Background(), nil, ClientOptions{})
	if !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("error = %v, want ErrNoEndpoint for empty list", err)
	}
}
