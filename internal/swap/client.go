package swap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds one swap round trip.
const DefaultTimeout = 30 * time.Second

// HTTPExecutor executes swaps through an aggregator's swap API.
type HTTPExecutor struct {
	endpoint string
	client   *http.Client
}

// HTTPExecutorOption configures HTTPExecutor.
type HTTPExecutorOption func(*HTTPExecutor)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPExecutorOption {
	return func(e *HTTPExecutor) {
		e.client = client
	}
}

// NewHTTPExecutor creates a new swap API client.
func NewHTTPExecutor(endpoint string, opts ...HTTPExecutorOption) *HTTPExecutor {
	e := &HTTPExecutor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// swapRequest is the swap API request payload.
type swapRequest struct {
	AgentID   string  `json:"agentId"`
	TokenMint string  `json:"tokenMint"`
	Side      string  `json:"side"`
	Amount    float64 `json:"amount"`
}

// ExecuteBuy swaps settlement currency into the token.
func (e *HTTPExecutor) ExecuteBuy(ctx context.Context, agentID, tokenMint string, amount float64) (*Result, error) {
	return e.execute(ctx, swapRequest{AgentID: agentID, TokenMint: tokenMint, Side: "buy", Amount: amount})
}

// ExecuteSell swaps the token into settlement currency.
func (e *HTTPExecutor) ExecuteSell(ctx context.Context, agentID, tokenMint string, amount float64) (*Result, error) {
	return e.execute(ctx, swapRequest{AgentID: agentID, TokenMint: tokenMint, Side: "sell", Amount: amount})
}

func (e *HTTPExecutor) execute(ctx context.Context, reqBody swapRequest) (*Result, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap API status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

var _ Executor = (*HTTPExecutor)(nil)
