package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL. Trades are
// written by CurveStore.ApplyTrade; this store only reads.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// NUMERIC travels as text so decimal values survive without float rounding.
const tradeSelectColumns = `
	trade_id, curve_id, trader, side, token_amount, settlement_amount::text,
	platform_fee::text, price_per_token::text, tx_signature, timestamp
`

// GetBySignature retrieves a trade by tx signature. Returns ErrNotFound if not exists.
func (s *TradeStore) GetBySignature(ctx context.Context, txSignature string) (*domain.Trade, error) {
	query := `SELECT ` + tradeSelectColumns + ` FROM trades WHERE tx_signature = $1`

	row := s.pool.QueryRow(ctx, query, txSignature)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select trade: %w", err)
	}
	return t, nil
}

// GetByCurveID retrieves all trades for a curve, ordered by timestamp ASC.
func (s *TradeStore) GetByCurveID(ctx context.Context, curveID string) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeSelectColumns + ` FROM trades WHERE curve_id = $1 ORDER BY timestamp ASC`
	return s.getMany(ctx, query, curveID)
}

// GetByTrader retrieves all trades for a trader address, ordered by timestamp ASC.
func (s *TradeStore) GetByTrader(ctx context.Context, trader string) ([]*domain.Trade, error) {
	query := `SELECT ` + tradeSelectColumns + ` FROM trades WHERE trader = $1 ORDER BY timestamp ASC`
	return s.getMany(ctx, query, trader)
}

func (s *TradeStore) getMany(ctx context.Context, query string, arg interface{}) ([]*domain.Trade, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("select trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}

func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var settlement, fee, price string

	err := row.Scan(
		&t.TradeID,
		&t.CurveID,
		&t.Trader,
		&t.Side,
		&t.TokenAmount,
		&settlement,
		&fee,
		&price,
		&t.TxSignature,
		&t.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	if t.SettlementAmount, err = decimal.NewFromString(settlement); err != nil {
		return nil, fmt.Errorf("parse settlement_amount: %w", err)
	}
	if t.PlatformFee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("parse platform_fee: %w", err)
	}
	if t.PricePerToken, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price_per_token: %w", err)
	}
	return &t, nil
}
