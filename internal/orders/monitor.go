package orders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/events"
	"agent-launchpad/internal/observability"
	"agent-launchpad/internal/oracle"
	"agent-launchpad/internal/storage"
	"agent-launchpad/internal/swap"
)

// ErrCycleInFlight is returned when a cycle is requested while the previous
// one is still running. Ticks never overlap: the in-flight cycle finishes and
// the late tick is dropped.
var ErrCycleInFlight = errors.New("monitor cycle already in flight")

// Default monitor settings.
const (
	DefaultInterval    = 10 * time.Second
	DefaultFetchLimit  = 8
	DefaultExecLimit   = 4
	DefaultExecTimeout = 30 * time.Second
)

// Monitor periodically evaluates active orders against oracle prices and
// executes the ones whose trigger predicates hold. Orders are claimed with a
// status compare-and-swap before execution, so even racing cycles settle an
// order at most once.
type Monitor struct {
	store     storage.OrderStore
	fills     storage.OrderFillStore
	prices    oracle.Source
	executor  swap.Executor
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger

	vsToken     string
	interval    time.Duration
	fetchLimit  int
	execLimit   int
	execTimeout time.Duration

	inFlight atomic.Bool
	nowFunc  func() time.Time

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// MonitorOptions contains configuration for creating a Monitor.
type MonitorOptions struct {
	OrderStore     storage.OrderStore
	OrderFillStore storage.OrderFillStore
	Prices         oracle.Source
	Executor       swap.Executor
	Publisher      events.Publisher
	Metrics        *observability.Metrics
	Logger         *zap.Logger

	// VsToken is the quote currency all trigger prices are denominated in.
	VsToken string

	// Interval between evaluation cycles. Default 10s.
	Interval time.Duration

	// FetchLimit bounds concurrent per-token price fetches. Default 8.
	FetchLimit int

	// ExecLimit bounds concurrent order executions. Default 4.
	ExecLimit int

	// ExecTimeout bounds one swap call. A timeout is a failure: the order
	// reverts to active. Default 30s.
	ExecTimeout time.Duration
}

// NewMonitor creates a new order monitor.
func NewMonitor(opts MonitorOptions) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	fetchLimit := opts.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = DefaultFetchLimit
	}
	execLimit := opts.ExecLimit
	if execLimit <= 0 {
		execLimit = DefaultExecLimit
	}
	execTimeout := opts.ExecTimeout
	if execTimeout <= 0 {
		execTimeout = DefaultExecTimeout
	}

	return &Monitor{
		store:       opts.OrderStore,
		fills:       opts.OrderFillStore,
		prices:      opts.Prices,
		executor:    opts.Executor,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		logger:      logger,
		vsToken:     opts.VsToken,
		interval:    interval,
		fetchLimit:  fetchLimit,
		execLimit:   execLimit,
		execTimeout: execTimeout,
		nowFunc:     time.Now,
	}
}

// CycleStats summarizes one evaluation cycle.
type CycleStats struct {
	Expired       int // active orders moved to expired
	Evaluated     int // active orders considered
	TokensFetched int // distinct tokens priced
	PriceFailures int // tokens skipped because no price was available
	Triggered     int // orders whose predicate held and that were claimed
	Executed      int // orders settled successfully
	Failed        int // execution attempts that failed and reverted
}

// Start launches the monitor loop in a goroutine. Stop cancels it and waits
// for the in-flight cycle to finish.
func (m *Monitor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		m.Run(runCtx)
	}()
}

// Stop cancels the loop started by Start and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		}
	})
}

// Run evaluates cycles on a ticker until ctx is cancelled. Cycles run
// synchronously in the loop, so a slow cycle delays (never overlaps) the
// next; ticks that fire while a cycle is running are dropped by the ticker.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("order monitor started", zap.Duration("interval", m.interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("order monitor stopped")
			return
		case <-ticker.C:
			stats, err := m.RunCycle(ctx)
			if err != nil {
				if errors.Is(err, ErrCycleInFlight) || errors.Is(err, context.Canceled) {
					continue
				}
				m.logger.Error("monitor cycle failed", zap.Error(err))
				continue
			}
			if stats.Triggered > 0 || stats.Expired > 0 {
				m.logger.Info("monitor cycle",
					zap.Int("evaluated", stats.Evaluated),
					zap.Int("expired", stats.Expired),
					zap.Int("triggered", stats.Triggered),
					zap.Int("executed", stats.Executed),
					zap.Int("failed", stats.Failed))
			}
		}
	}
}

// RunCycle performs one evaluation sweep: expiry, load, grouped price fetch,
// trigger evaluation, execution. Only one cycle runs at a time; a concurrent
// call returns ErrCycleInFlight.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleStats, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer m.inFlight.Store(false)

	start := m.nowFunc()
	stats := &CycleStats{}

	// Expiry is price-independent and runs first so expired orders are not
	// evaluated below.
	expired, err := m.store.ExpireBefore(ctx, start.UnixMilli())
	if err != nil {
		return nil, err
	}
	stats.Expired = expired

	active, err := m.store.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	stats.Evaluated = len(active)
	if len(active) == 0 {
		m.observeCycle(start, stats)
		return stats, nil
	}

	byToken := make(map[string][]*domain.Order)
	for _, o := range active {
		byToken[o.TokenMint] = append(byToken[o.TokenMint], o)
	}

	prices := m.fetchPrices(ctx, byToken, stats)

	// One token's orders execute independently of another's; one order's
	// failure never aborts the rest.
	g := new(errgroup.Group)
	g.SetLimit(m.execLimit)
	var statsMu sync.Mutex

	for mint, list := range byToken {
		price, ok := prices[mint]
		if !ok {
			continue
		}
		for _, o := range list {
			if !ShouldTrigger(o.OrderType, price, o.TriggerPrice) {
				continue
			}
			order := o
			g.Go(func() error {
				claimed, executed := m.execute(ctx, order, price)
				statsMu.Lock()
				if claimed {
					stats.Triggered++
					if executed {
						stats.Executed++
					} else {
						stats.Failed++
					}
				}
				statsMu.Unlock()
				return nil
			})
		}
	}
	g.Wait()

	m.observeCycle(start, stats)
	return stats, nil
}

// fetchPrices fetches one price per token with bounded concurrency. A token
// whose fetch fails is skipped for this cycle.
func (m *Monitor) fetchPrices(ctx context.Context, byToken map[string][]*domain.Order, stats *CycleStats) map[string]float64 {
	g := new(errgroup.Group)
	g.SetLimit(m.fetchLimit)

	var mu sync.Mutex
	prices := make(map[string]float64, len(byToken))

	for mint := range byToken {
		mint := mint
		g.Go(func() error {
			q, err := m.prices.GetPrice(ctx, mint, m.vsToken)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.PriceFailures++
				if m.metrics != nil {
					m.metrics.OracleFetchErrors.Inc()
				}
				m.logger.Warn("price fetch failed, skipping token for cycle",
					zap.String("token_mint", mint), zap.Error(err))
				return nil
			}
			prices[mint] = q.Price
			stats.TokensFetched++
			return nil
		})
	}
	g.Wait()
	return prices
}

// execute claims one triggered order and settles it through the swap
// collaborator. Returns (claimed, executed). A failed or timed-out swap
// reverts the order to active for the next cycle; both outcomes append an
// order fill record.
func (m *Monitor) execute(ctx context.Context, o *domain.Order, price float64) (bool, bool) {
	// Claim: active -> triggered. Losing the CAS means another cycle claimed
	// the order, or it was cancelled; either way it is not ours.
	if err := m.store.UpdateStatus(ctx, o.OrderID, domain.OrderStatusActive, domain.OrderStatusTriggered); err != nil {
		if !errors.Is(err, storage.ErrStateConflict) && !errors.Is(err, storage.ErrNotFound) {
			m.logger.Error("order claim failed", zap.String("order_id", o.OrderID), zap.Error(err))
		}
		return false, false
	}

	if m.metrics != nil {
		m.metrics.OrdersTriggered.Inc()
	}

	side := Side(o.OrderType)
	execCtx, cancel := context.WithTimeout(ctx, m.execTimeout)
	defer cancel()

	var res *swap.Result
	var err error
	if side == domain.TradeSideBuy {
		res, err = m.executor.ExecuteBuy(execCtx, o.AgentID, o.TokenMint, o.Amount)
	} else {
		res, err = m.executor.ExecuteSell(execCtx, o.AgentID, o.TokenMint, o.Amount)
	}

	// A claimed order must reach a resolved state even if the parent context
	// is cancelled mid-execution.
	postCtx, postCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer postCancel()

	now := m.nowFunc().UnixMilli()
	fill := &domain.OrderFill{
		FillID:    uuid.NewString(),
		OrderID:   o.OrderID,
		TokenMint: o.TokenMint,
		Side:      side,
		Amount:    o.Amount,
		Price:     price,
		Timestamp: now,
	}

	if err != nil || !res.Success {
		fill.Success = false
		if err != nil {
			fill.Error = err.Error()
		} else {
			fill.Error = res.Error
		}

		if revertErr := m.store.UpdateStatus(postCtx, o.OrderID, domain.OrderStatusTriggered, domain.OrderStatusActive); revertErr != nil {
			m.logger.Error("order revert failed",
				zap.String("order_id", o.OrderID), zap.Error(revertErr))
		}
		m.recordFill(postCtx, fill)
		if m.metrics != nil {
			m.metrics.OrderExecutionFailures.Inc()
		}
		m.logger.Warn("order execution failed, reverted to active",
			zap.String("order_id", o.OrderID),
			zap.String("type", o.OrderType),
			zap.String("error", fill.Error))
		return true, false
	}

	if markErr := m.store.MarkExecuted(postCtx, o.OrderID, price, res.Signature, now); markErr != nil {
		m.logger.Error("mark executed failed",
			zap.String("order_id", o.OrderID), zap.Error(markErr))
	}
	fill.Success = true
	fill.TxSignature = res.Signature
	m.recordFill(postCtx, fill)

	if m.metrics != nil {
		m.metrics.OrdersExecuted.Inc()
	}
	if m.publisher != nil {
		m.publisher.Publish(domain.Event{
			Type:      domain.EventTradeExecuted,
			AgentID:   o.AgentID,
			TokenMint: o.TokenMint,
			Payload:   fill,
			Timestamp: now,
		})
	}

	m.logger.Info("order executed",
		zap.String("order_id", o.OrderID),
		zap.String("type", o.OrderType),
		zap.Float64("price", price),
		zap.String("signature", res.Signature))
	return true, true
}

func (m *Monitor) recordFill(ctx context.Context, f *domain.OrderFill) {
	if err := m.fills.Insert(ctx, f); err != nil {
		m.logger.Error("order fill insert failed",
			zap.String("order_id", f.OrderID), zap.Error(err))
	}
}

func (m *Monitor) observeCycle(start time.Time, stats *CycleStats) {
	if m.metrics == nil {
		return
	}
	m.metrics.MonitorCycles.Inc()
	m.metrics.MonitorCycleDuration.Observe(m.nowFunc().Sub(start).Seconds())
	if stats.Expired > 0 {
		m.metrics.OrdersExpired.Add(float64(stats.Expired))
	}
}
