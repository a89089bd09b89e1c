package storage

import (
	"context"

	"agent-launchpad/internal/domain"
)

// CurveStore provides access to curves storage plus the transactional
// settlement primitive the trade coordinator requires.
type CurveStore interface {
	// Insert adds a new curve. Returns ErrDuplicateKey if curve_id exists.
	Insert(ctx context.Context, c *domain.CurveState) error

	// GetByID retrieves a curve by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, curveID string) (*domain.CurveState, error)

	// GetByTokenMint retrieves the curve for a token mint. Returns ErrNotFound if not exists.
	GetByTokenMint(ctx context.Context, mint string) (*domain.CurveState, error)

	// ApplyTrade atomically persists one settled trade: the curve row is
	// updated to the state in c guarded by expectedVersion, and the trade row
	// is inserted, as a single unit. Returns ErrVersionConflict if the curve
	// version moved, ErrDuplicateKey if the trade tx_signature exists.
	ApplyTrade(ctx context.Context, c *domain.CurveState, expectedVersion int64, t *domain.Trade) error

	// MarkGraduated sets the terminal graduated state. The update is
	// conditional on graduated=false; returns ErrStateConflict if the curve
	// already graduated, ErrNotFound if the curve does not exist.
	MarkGraduated(ctx context.Context, curveID, poolAddress string, graduatedAt int64) error
}

// TradeStore provides read access to the append-only trades ledger.
// Writes go through CurveStore.ApplyTrade.
type TradeStore interface {
	// GetBySignature retrieves a trade by tx signature. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, txSignature string) (*domain.Trade, error)

	// GetByCurveID retrieves all trades for a curve, ordered by timestamp ASC.
	GetByCurveID(ctx context.Context, curveID string) ([]*domain.Trade, error)

	// GetByTrader retrieves all trades for a trader address, ordered by timestamp ASC.
	GetByTrader(ctx context.Context, trader string) ([]*domain.Trade, error)
}

// OrderStore provides access to orders storage. Status transitions are
// compare-and-swap: the update applies only when the current status matches
// the expected one, which is the order engine's claim mechanism.
type OrderStore interface {
	// Insert adds a new order. Returns ErrDuplicateKey if order_id exists.
	Insert(ctx context.Context, o *domain.Order) error

	// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetActive retrieves all orders with status=active, ordered by created_at ASC.
	GetActive(ctx context.Context) ([]*domain.Order, error)

	// GetByAgent retrieves orders for an agent, optionally filtered by status
	// (empty status means all), ordered by created_at ASC.
	GetByAgent(ctx context.Context, agentID, status string) ([]*domain.Order, error)

	// UpdateStatus transitions order status from->to. Returns ErrStateConflict
	// if the current status is not from, ErrNotFound if the order does not exist.
	UpdateStatus(ctx context.Context, orderID, from, to string) error

	// MarkExecuted transitions triggered->executed and records execution
	// details. Returns ErrStateConflict if the order is not in triggered.
	MarkExecuted(ctx context.Context, orderID string, price float64, txSignature string, executedAt int64) error

	// ExpireBefore sets status=expired on every active order whose expires_at
	// is at or before nowMs. Returns the number of orders expired.
	ExpireBefore(ctx context.Context, nowMs int64) (int, error)
}

// OrderFillStore provides access to the append-only order_fills history.
type OrderFillStore interface {
	// Insert adds a new fill record. Returns ErrDuplicateKey if fill_id exists.
	Insert(ctx context.Context, f *domain.OrderFill) error

	// GetByOrderID retrieves all fills for an order, ordered by timestamp ASC.
	GetByOrderID(ctx context.Context, orderID string) ([]*domain.OrderFill, error)
}

// PriceHistoryStore records observed oracle prices for analytics.
type PriceHistoryStore interface {
	// InsertBulk appends observed price points.
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByTokenMint retrieves all points for a token, ordered by timestamp ASC.
	GetByTokenMint(ctx context.Context, mint string) ([]*domain.PricePoint, error)
}
