package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/observability"
	"agent-launchpad/internal/storage"
)

// Service errors.
var (
	// ErrInvalidOrder is returned when order parameters fail validation.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrNotActive is returned when a transition is requested on an order
	// that is not active. A cancel arriving while the engine holds the order
	// in triggered gets this error; the caller retries after the cycle
	// resolves the order.
	ErrNotActive = errors.New("order is not active")
)

// Service owns order intake and caller-driven transitions.
type Service struct {
	store   storage.OrderStore
	metrics *observability.Metrics
	logger  *zap.Logger
	nowFunc func() time.Time
	idFunc  func() string
}

// NewService creates a new order service.
func NewService(store storage.OrderStore, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		metrics: metrics,
		logger:  logger,
		nowFunc: time.Now,
		idFunc:  uuid.NewString,
	}
}

// CreateParams describes one conditional order. TriggerPrice may be given
// directly, or derived from EntryPrice and a percent for stop-loss and
// take-profit orders.
type CreateParams struct {
	AgentID    string
	TokenMint  string
	OrderType  string
	EntryPrice float64
	Amount     float64

	TriggerPrice   float64 // explicit trigger threshold
	TriggerPercent float64 // used when TriggerPrice is zero

	ExpiresIn time.Duration // zero means no expiry
}

// Create validates, derives the trigger price when needed, and stores a new
// active order.
func (s *Service) Create(ctx context.Context, p CreateParams) (*domain.Order, error) {
	if !domain.ValidOrderType(p.OrderType) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidOrder, p.OrderType)
	}
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}
	if p.AgentID == "" || p.TokenMint == "" {
		return nil, fmt.Errorf("%w: agent and token are required", ErrInvalidOrder)
	}

	trigger := p.TriggerPrice
	if trigger == 0 && p.TriggerPercent > 0 {
		switch p.OrderType {
		case domain.OrderTypeStopLoss:
			trigger = StopLossTrigger(p.EntryPrice, p.TriggerPercent)
		case domain.OrderTypeTakeProfit:
			trigger = TakeProfitTrigger(p.EntryPrice, p.TriggerPercent)
		}
	}
	if trigger <= 0 {
		return nil, fmt.Errorf("%w: trigger price must be positive", ErrInvalidOrder)
	}

	now := s.nowFunc().UnixMilli()
	o := &domain.Order{
		OrderID:      s.idFunc(),
		AgentID:      p.AgentID,
		TokenMint:    p.TokenMint,
		OrderType:    p.OrderType,
		Status:       domain.OrderStatusActive,
		EntryPrice:   p.EntryPrice,
		TriggerPrice: trigger,
		Amount:       p.Amount,
		CreatedAt:    now,
	}
	if p.ExpiresIn > 0 {
		expiresAt := now + p.ExpiresIn.Milliseconds()
		o.ExpiresAt = &expiresAt
	}

	if err := s.store.Insert(ctx, o); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	s.logger.Info("order created",
		zap.String("order_id", o.OrderID),
		zap.String("type", o.OrderType),
		zap.String("token_mint", o.TokenMint),
		zap.Float64("trigger_price", o.TriggerPrice))

	return o, nil
}

// Cancel transitions an active order to cancelled. An order the engine has
// claimed (triggered) cannot be cancelled; the caller gets ErrNotActive and
// retries once the cycle resolves.
func (s *Service) Cancel(ctx context.Context, orderID string) error {
	err := s.store.UpdateStatus(ctx, orderID, domain.OrderStatusActive, domain.OrderStatusCancelled)
	if err != nil {
		if errors.Is(err, storage.ErrStateConflict) {
			return fmt.Errorf("%w: %s", ErrNotActive, orderID)
		}
		return err
	}

	s.logger.Info("order cancelled", zap.String("order_id", orderID))
	return nil
}

// Get retrieves one order.
func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.store.GetByID(ctx, orderID)
}

// List retrieves an agent's orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, agentID, status string) ([]*domain.Order, error) {
	return s.store.GetByAgent(ctx, agentID, status)
}
