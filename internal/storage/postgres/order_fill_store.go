package postgres

import (
	"context"
	"fmt"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/storage"
)

// OrderFillStore implements storage.OrderFillStore using PostgreSQL.
type OrderFillStore struct {
	pool *Pool
}

// NewOrderFillStore creates a new OrderFillStore.
func NewOrderFillStore(pool *Pool) *OrderFillStore {
	return &OrderFillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderFillStore = (*OrderFillStore)(nil)

const fillColumns = `
	fill_id, order_id, token_mint, side, amount, price,
	tx_signature, success, error, timestamp
`

// Insert adds a new fill record. Returns ErrDuplicateKey if fill_id exists.
func (s *OrderFillStore) Insert(ctx context.Context, f *domain.OrderFill) error {
	query := `
		INSERT INTO order_fills (` + fillColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		f.FillID,
		f.OrderID,
		f.TokenMint,
		f.Side,
		f.Amount,
		f.Price,
		f.TxSignature,
		f.Success,
		f.Error,
		f.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order fill: %w", err)
	}
	return nil
}

// GetByOrderID retrieves all fills for an order, ordered by timestamp ASC.
func (s *OrderFillStore) GetByOrderID(ctx context.Context, orderID string) ([]*domain.OrderFill, error) {
	query := `SELECT ` + fillColumns + ` FROM order_fills WHERE order_id = $1 ORDER BY timestamp ASC`

	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order fills: %w", err)
	}
	defer rows.Close()

	var fills []*domain.OrderFill
	for rows.Next() {
		var f domain.OrderFill
		err := rows.Scan(
			&f.FillID,
			&f.OrderID,
			&f.TokenMint,
			&f.Side,
			&f.Amount,
			&f.Price,
			&f.TxSignature,
			&f.Success,
			&f.Error,
			&f.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order fill: %w", err)
		}
		fills = append(fills, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order fills: %w", err)
	}
	return fills, nil
}
