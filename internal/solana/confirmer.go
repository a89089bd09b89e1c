package solana

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"agent-launchpad/internal/curve"
)

// solDecimals is the settlement currency's base-unit scale.
const solDecimals = 9

// Confirmer implements curve.ChainConfirmer over the RPC client. It fetches
// the finalized transaction and, when balance metadata is present, derives
// the lamports the fee payer actually moved so the coordinator can check the
// claimed settlement amount against the chain.
type Confirmer struct {
	client *HTTPClient
}

// NewConfirmer creates a Confirmer over the given RPC client.
func NewConfirmer(client *HTTPClient) *Confirmer {
	return &Confirmer{client: client}
}

// ConfirmTransaction resolves a settlement signature on chain.
func (c *Confirmer) ConfirmTransaction(ctx context.Context, signature string) (*curve.ChainConfirmation, error) {
	if err := ValidateSignature(signature); err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	tx, err := c.client.GetTransaction(ctx, signature)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if tx == nil || tx.Meta == nil || tx.Meta.Failed() {
		return &curve.ChainConfirmation{Confirmed: false}, nil
	}

	conf := &curve.ChainConfirmation{
		Confirmed: true,
		Slot:      tx.Slot,
	}

	// Fee payer is account index 0; its balance delta minus the fee is the
	// settlement transfer.
	meta := tx.Meta
	if len(meta.PreBalances) > 0 && len(meta.PostBalances) > 0 {
		moved := meta.PreBalances[0] - meta.PostBalances[0] - meta.Fee
		if moved < 0 {
			moved = -moved
		}
		transferred := decimal.New(moved, -solDecimals)
		conf.Transferred = &transferred
	}

	return conf, nil
}

var _ curve.ChainConfirmer = (*Confirmer)(nil)
