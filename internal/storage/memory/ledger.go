package memory

import (
	"context"
	"sort"
	"sync"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/storage"
)

// Ledger is an in-memory implementation of storage.CurveStore and
// storage.TradeStore. Curve rows and trade rows live behind one mutex so
// ApplyTrade commits both as a single unit, mirroring the transactional
// guarantee of the PostgreSQL implementation.
type Ledger struct {
	mu     sync.RWMutex
	curves map[string]*domain.CurveState // keyed by curve_id
	byMint map[string]string             // token mint -> curve_id
	trades map[string]*domain.Trade      // keyed by tx_signature
}

// NewLedger creates a new in-memory curve/trade ledger.
func NewLedger() *Ledger {
	return &Ledger{
		curves: make(map[string]*domain.CurveState),
		byMint: make(map[string]string),
		trades: make(map[string]*domain.Trade),
	}
}

// Insert adds a new curve. Returns ErrDuplicateKey if curve_id or token mint exists.
func (l *Ledger) Insert(_ context.Context, c *domain.CurveState) error {
	if c == nil || c.CurveID == "" || c.TokenMint == "" {
		return storage.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.curves[c.CurveID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := l.byMint[c.TokenMint]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *c
	l.curves[c.CurveID] = &copy
	l.byMint[c.TokenMint] = c.CurveID
	return nil
}

// GetByID retrieves a curve by its ID. Returns ErrNotFound if not exists.
func (l *Ledger) GetByID(_ context.Context, curveID string) (*domain.CurveState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, exists := l.curves[curveID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *c
	return &copy, nil
}

// GetByTokenMint retrieves the curve for a token mint. Returns ErrNotFound if not exists.
func (l *Ledger) GetByTokenMint(_ context.Context, mint string) (*domain.CurveState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	curveID, exists := l.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *l.curves[curveID]
	return &copy, nil
}

// ApplyTrade atomically updates the curve row and inserts the trade row.
func (l *Ledger) ApplyTrade(_ context.Context, c *domain.CurveState, expectedVersion int64, t *domain.Trade) error {
	if c == nil || t == nil || t.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, exists := l.curves[c.CurveID]
	if !exists {
		return storage.ErrNotFound
	}
	if current.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	if _, exists := l.trades[t.TxSignature]; exists {
		return storage.ErrDuplicateKey
	}

	updated := *c
	updated.Version = expectedVersion + 1
	l.curves[c.CurveID] = &updated

	tradeCopy := *t
	l.trades[t.TxSignature] = &tradeCopy
	return nil
}

// MarkGraduated sets the terminal graduated state, conditional on graduated=false.
func (l *Ledger) MarkGraduated(_ context.Context, curveID, poolAddress string, graduatedAt int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, exists := l.curves[curveID]
	if !exists {
		return storage.ErrNotFound
	}
	if c.Graduated {
		return storage.ErrStateConflict
	}

	c.Graduated = true
	c.GraduatedAt = &graduatedAt
	c.PoolAddress = &poolAddress
	c.Version++
	c.UpdatedAt = graduatedAt
	return nil
}

// GetBySignature retrieves a trade by tx signature. Returns ErrNotFound if not exists.
func (l *Ledger) GetBySignature(_ context.Context, txSignature string) (*domain.Trade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, exists := l.trades[txSignature]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *t
	return &copy, nil
}

// GetByCurveID retrieves all trades for a curve, ordered by timestamp ASC.
func (l *Ledger) GetByCurveID(_ context.Context, curveID string) ([]*domain.Trade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range l.trades {
		if t.CurveID == curveID {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortTrades(result)
	return result, nil
}

// GetByTrader retrieves all trades for a trader address, ordered by timestamp ASC.
func (l *Ledger) GetByTrader(_ context.Context, trader string) ([]*domain.Trade, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range l.trades {
		if t.Trader == trader {
			copy := *t
			result = append(result, &copy)
		}
	}
	sortTrades(result)
	return result, nil
}

func sortTrades(trades []*domain.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Timestamp != trades[j].Timestamp {
			return trades[i].Timestamp < trades[j].Timestamp
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}

var (
	_ storage.CurveStore = (*Ledger)(nil)
	_ storage.TradeStore = (*Ledger)(nil)
)
