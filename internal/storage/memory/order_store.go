package memory

import (
	"context"
	"sort"
	"sync"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/storage"
)

// OrderStore is an in-memory implementation of storage.OrderStore.
type OrderStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Order // keyed by order_id
}

// NewOrderStore creates a new in-memory order store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		data: make(map[string]*domain.Order),
	}
}

// Insert adds a new order. Returns ErrDuplicateKey if order_id exists.
func (s *OrderStore) Insert(_ context.Context, o *domain.Order) error {
	if o == nil || o.OrderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.OrderID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *o
	s.data[o.OrderID] = &copy
	return nil
}

// GetByID retrieves an order by its ID. Returns ErrNotFound if not exists.
func (s *OrderStore) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[orderID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *o
	return &copy, nil
}

// GetActive retrieves all orders with status=active, ordered by created_at ASC.
func (s *OrderStore) GetActive(_ context.Context) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, o := range s.data {
		if o.Status == domain.OrderStatusActive {
			copy := *o
			result = append(result, &copy)
		}
	}
	sortOrders(result)
	return result, nil
}

// GetByAgent retrieves orders for an agent, optionally filtered by status.
func (s *OrderStore) GetByAgent(_ context.Context, agentID, status string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Order
	for _, o := range s.data {
		if o.AgentID != agentID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		copy := *o
		result = append(result, &copy)
	}
	sortOrders(result)
	return result, nil
}

// UpdateStatus transitions order status from->to if the current status matches from.
func (s *OrderStore) UpdateStatus(_ context.Context, orderID, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.data[orderID]
	if !exists {
		return storage.ErrNotFound
	}
	if o.Status != from {
		return storage.ErrStateConflict
	}

	o.Status = to
	return nil
}

// MarkExecuted transitions triggered->executed and records execution details.
func (s *OrderStore) MarkExecuted(_ context.Context, orderID string, price float64, txSignature string, executedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.data[orderID]
	if !exists {
		return storage.ErrNotFound
	}
	if o.Status != domain.OrderStatusTriggered {
		return storage.ErrStateConflict
	}

	o.Status = domain.OrderStatusExecuted
	o.ExecutedPrice = &price
	o.ExecutedTxSignature = &txSignature
	o.ExecutedAt = &executedAt
	return nil
}

// ExpireBefore sets status=expired on active orders whose expires_at <= nowMs.
func (s *OrderStore) ExpireBefore(_ context.Context, nowMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired int
	for _, o := range s.data {
		if o.Status == domain.OrderStatusActive && o.ExpiresAt != nil && *o.ExpiresAt <= nowMs {
			o.Status = domain.OrderStatusExpired
			expired++
		}
	}
	return expired, nil
}

func sortOrders(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt < orders[j].CreatedAt
		}
		return orders[i].OrderID < orders[j].OrderID
	})
}

var _ storage.OrderStore = (*OrderStore)(nil)
