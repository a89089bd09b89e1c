// Package pool provides the pool-creation collaborator invoked once per
// graduation to seed an external liquidity pool.
package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds one pool creation round trip. Pool creation settles
// a transaction on chain, so it is generous.
const DefaultTimeout = 60 * time.Second

// HTTPCreator creates liquidity pools through an AMM service API.
// It implements curve.PoolCreator.
type HTTPCreator struct {
	endpoint string
	client   *http.Client
}

// HTTPCreatorOption configures HTTPCreator.
type HTTPCreatorOption func(*HTTPCreator)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPCreatorOption {
	return func(c *HTTPCreator) {
		c.client = client
	}
}

// NewHTTPCreator creates a new pool API client.
func NewHTTPCreator(endpoint string, opts ...HTTPCreatorOption) *HTTPCreator {
	c := &HTTPCreator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// createPoolRequest is the pool API request payload.
type createPoolRequest struct {
	TokenMint        string `json:"tokenMint"`
	TokenAmount      int64  `json:"tokenAmount"`
	SettlementAmount string `json:"settlementAmount"`
}

// createPoolResponse is the pool API response payload.
type createPoolResponse struct {
	PoolID string `json:"poolId"`
	Error  string `json:"error,omitempty"`
}

// CreatePool seeds a new pool with the remaining token allocation and the
// curve's accumulated value, returning the pool address.
func (c *HTTPCreator) CreatePool(ctx context.Context, tokenMint string, tokenAmount int64, settlementAmount decimal.Decimal) (string, error) {
	payload, err := json.Marshal(createPoolRequest{
		TokenMint:        tokenMint,
		TokenAmount:      tokenAmount,
		SettlementAmount: settlementAmount.String(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal pool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/pools", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pool request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pool API status %d: %s", resp.StatusCode, string(body))
	}

	var result createPoolResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.PoolID == "" {
		return "", fmt.Errorf("pool API returned no pool id: %s", result.Error)
	}
	return result.PoolID, nil
}
