package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/storage"
)

// OrderStore implements storage.OrderStore using PostgreSQL. Status
// transitions are conditional UPDATEs so concurrent monitors cannot claim
// the same order twice.
type OrderStore struct {
	pool *Pool
}

// NewOrderStore creates a new OrderStore.
func NewOrderStore(pool *Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderStore = (*OrderStore)(nil)

const orderColumns = `
	order_id, agent_id, token_mint, order_type, status, entry_price,
	trigger_price, amount, expires_at, created_at,
	executed_price, executed_tx_signature, executed_at
`

// Insert adds a new order. Returns ErrDuplicateKey if order_id exists.
func (s *OrderStore) Insert(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.pool.Exec(ctx, query,
		o.OrderID,
		o.AgentID,
		o.TokenMint,
		o.OrderType,
		o.Status,
		o.EntryPrice,
		o.TriggerPrice,
		o.Amount,
		o.ExpiresAt,
		o.CreatedAt,
		o.ExecutedPrice,
		o.ExecutedTxSignature,
		o.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	row := s.pool.QueryRow(ctx, query, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return o, nil
}

// GetActive retrieves all orders with status=active, ordered by created_at ASC.
func (s *OrderStore) GetActive(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at ASC`
	return s.getMany(ctx, query, domain.OrderStatusActive)
}

// GetByAgent retrieves orders for an agent, optionally filtered by status.
func (s *OrderStore) GetByAgent(ctx context.Context, agentID, status string) ([]*domain.Order, error) {
	if status == "" {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE agent_id = $1 ORDER BY created_at ASC`
		return s.getMany(ctx, query, agentID)
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE agent_id = $1 AND status = $2 ORDER BY created_at ASC`
	return s.getMany(ctx, query, agentID, status)
}

// UpdateStatus transitions order status from->to, conditional on the current
// status. Zero affected rows means either the order is gone or another
// writer changed the status first.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID, from, to string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = $1 WHERE order_id = $2 AND status = $3
	`, to, orderID, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, orderID)
	}
	return nil
}

// MarkExecuted transitions triggered->executed and records execution details.
func (s *OrderStore) MarkExecuted(ctx context.Context, orderID string, price float64, txSignature string, executedAt int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $1, executed_price = $2, executed_tx_signature = $3, executed_at = $4
		WHERE order_id = $5 AND status = $6
	`, domain.OrderStatusExecuted, price, txSignature, executedAt, orderID, domain.OrderStatusTriggered)
	if err != nil {
		return fmt.Errorf("mark order executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrNotFound(ctx, orderID)
	}
	return nil
}

// ExpireBefore sets status=expired on every active order whose expires_at is
// at or before nowMs. Returns the number of orders expired.
func (s *OrderStore) ExpireBefore(ctx context.Context, nowMs int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3
	`, domain.OrderStatusExpired, domain.OrderStatusActive, nowMs)
	if err != nil {
		return 0, fmt.Errorf("expire orders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *OrderStore) conflictOrNotFound(ctx context.Context, orderID string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrStateConflict
}

func (s *OrderStore) getMany(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order

	err := row.Scan(
		&o.OrderID,
		&o.AgentID,
		&o.TokenMint,
		&o.OrderType,
		&o.Status,
		&o.EntryPrice,
		&o.TriggerPrice,
		&o.Amount,
		&o.ExpiresAt,
		&o.CreatedAt,
		&o.ExecutedPrice,
		&o.ExecutedTxSignature,
		&o.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
