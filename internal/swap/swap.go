// Package swap provides the swap-execution collaborator the order engine
// settles triggered orders through.
package swap

import "context"

// Result is the outcome of one swap attempt. Success=false with a non-empty
// Error is an execution failure, recoverable by the order engine.
type Result struct {
	Success      bool    `json:"success"`
	Signature    string  `json:"signature,omitempty"`
	OutputAmount float64 `json:"outputAmount,omitempty"`
	PriceImpact  float64 `json:"priceImpact,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Executor executes swaps on behalf of an agent. Calls must respect ctx
// deadlines; a timeout is a failure, never a partial commit.
type Executor interface {
	ExecuteBuy(ctx context.Context, agentID, tokenMint string, amount float64) (*Result, error)
	ExecuteSell(ctx context.Context, agentID, tokenMint string, amount float64) (*Result, error)
}
