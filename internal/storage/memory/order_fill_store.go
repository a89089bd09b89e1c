package memory

import (
	"context"
	"sort"
	"sync"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/storage"
)

// OrderFillStore is an in-memory implementation of storage.OrderFillStore.
type OrderFillStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OrderFill // keyed by fill_id
}

// NewOrderFillStore creates a new in-memory order fill store.
func NewOrderFillStore() *OrderFillStore {
	return &OrderFillStore{
		data: make(map[string]*domain.OrderFill),
	}
}

// Insert adds a new fill record. Returns ErrDuplicateKey if fill_id exists.
func (s *OrderFillStore) Insert(_ context.Context, f *domain.OrderFill) error {
	if f == nil || f.FillID == "" || f.OrderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[f.FillID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *f
	s.data[f.FillID] = &copy
	return nil
}

// GetByOrderID retrieves all fills for an order, ordered by timestamp ASC.
func (s *OrderFillStore) GetByOrderID(_ context.Context, orderID string) ([]*domain.OrderFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderFill
	for _, f := range s.data {
		if f.OrderID == orderID {
			copy := *f
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].FillID < result[j].FillID
	})

	return result, nil
}

var _ storage.OrderFillStore = (*OrderFillStore)(nil)
