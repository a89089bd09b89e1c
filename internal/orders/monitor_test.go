package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/oracle"
	"agent-launchpad/internal/storage/memory"
	"agent-launchpad/internal/swap"
)

// stubSource serves fixed prices per token and records fetch counts.
type stubSource struct {
	mu     sync.Mutex
	prices map[string]float64
	calls  int
}

func (s *stubSource) GetPrice(_ context.Context, token, vsToken string) (*oracle.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	p, ok := s.prices[token]
	if !ok {
		return nil, oracle.ErrUnavailable
	}
	return &oracle.Quote{Token: token, VsToken: vsToken, Price: p, FetchedAt: time.Now()}, nil
}

// stubExecutor settles swaps with a canned outcome.
type stubExecutor struct {
	mu        sync.Mutex
	fail      bool          // Result.Success=false
	err       error         // transport-level failure
	delay     time.Duration // simulated execution latency
	buys      int
	sells     int
	lastMint  string
	lastAgent string
}

func (e *stubExecutor) exec(ctx context.Context, agentID, tokenMint string) (*swap.Result, error) {
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastMint = tokenMint
	e.lastAgent = agentID
	if e.err != nil {
		return nil, e.err
	}
	if e.fail {
		return &swap.Result{Success: false, Error: "slippage exceeded"}, nil
	}
	return &swap.Result{Success: true, Signature: "sig-" + tokenMint}, nil
}

func (e *stubExecutor) ExecuteBuy(ctx context.Context, agentID, tokenMint string, _ float64) (*swap.Result, error) {
	e.mu.Lock()
	e.buys++
	e.mu.Unlock()
	return e.exec(ctx, agentID, tokenMint)
}

func (e *stubExecutor) ExecuteSell(ctx context.Context, agentID, tokenMint string, _ float64) (*swap.Result, error) {
	e.mu.Lock()
	e.sells++
	e.mu.Unlock()
	return e.exec(ctx, agentID, tokenMint)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) Publish(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type monitorEnv struct {
	monitor  *Monitor
	store    *memory.OrderStore
	fills    *memory.OrderFillStore
	source   *stubSource
	executor *stubExecutor
	events   *eventRecorder
}

func newMonitorEnv(prices map[string]float64) *monitorEnv {
	env := &monitorEnv{
		store:    memory.NewOrderStore(),
		fills:    memory.NewOrderFillStore(),
		source:   &stubSource{prices: prices},
		executor: &stubExecutor{},
		events:   &eventRecorder{},
	}
	env.monitor = NewMonitor(MonitorOptions{
		OrderStore:     env.store,
		OrderFillStore: env.fills,
		Prices:         env.source,
		Executor:       env.executor,
		Publisher:      env.events,
		VsToken:        "SOL",
	})
	return env
}

func insertOrder(t *testing.T, store *memory.OrderStore, o *domain.Order) {
	t.Helper()
	if o.Status == "" {
		o.Status = domain.OrderStatusActive
	}
	if err := store.Insert(context.Background(), o); err != nil {
		t.Fatalf("insert order %s: %v", o.OrderID, err)
	}
}

func TestMonitor_StopLossExecution(t *testing.T) {
	env := newMonitorEnv(map[string]float64{"MintA": 0.95})
	ctx := context.Background()

	insertOrder(t, env.store, &domain.Order{
		OrderID: "o1", AgentID: "agent-1", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 100,
	})

	// Price above trigger: nothing fires.
	stats, err := env.monitor.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Triggered != 0 || stats.Evaluated != 1 {
		t.Errorf("stats = %+v, want evaluated=1 triggered=0", stats)
	}

	// Price at the boundary fires.
	env.source.prices["MintA"] = 0.9
	stats, err = env.monitor.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Triggered != 1 || stats.Executed != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want triggered=1 executed=1", stats)
	}
	if env.executor.sells != 1 || env.executor.buys != 0 {
		t.Errorf("executor calls buys=%d sells=%d, want one sell", env.executor.buys, env.executor.sells)
	}

	o, err := env.store.GetByID(ctx, "o1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if o.Status != domain.OrderStatusExecuted {
		t.Errorf("status = %s, want executed", o.Status)
	}
	if o.ExecutedPrice == nil || *o.ExecutedPrice != 0.9 {
		t.Errorf("executed price = %v, want 0.9", o.ExecutedPrice)
	}
	if o.ExecutedTxSignature == nil || *o.ExecutedTxSignature != "sig-MintA" {
		t.Errorf("executed signature = %v", o.ExecutedTxSignature)
	}

	fills, err := env.fills.GetByOrderID(ctx, "o1")
	if err != nil {
		t.Fatalf("GetByOrderID: %v", err)
	}
	if len(fills) != 1 || !fills[0].Success || fills[0].Side != domain.TradeSideSell {
		t.Errorf("fills = %+v, want one successful sell fill", fills)
	}

	if len(env.events.events) != 1 || env.events.events[0].Type != domain.EventTradeExecuted {
		t.Errorf("events = %+v, want one trade_executed", env.events.events)
	}
}

func TestMonitor_LimitBuyUsesBuySide(t *testing.T) {
	env := newMonitorEnv(map[string]float64{"MintA": 0.4})
	ctx := context.Background()

	insertOrder(t, env.store, &domain.Order{
		OrderID: "o1", AgentID: "agent-1", TokenMint: "MintA",
		OrderType: domain.OrderTypeLimitBuy, TriggerPrice: 0.5, Amount: 100,
	})

	stats, err := env.monitor.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Executed != 1 {
		t.Fatalf("stats = %+v, want executed=1", stats)
	}
	if env.executor.buys != 1 || env.executor.sells != 0 {
		t.Errorf("executor calls buys=%d sells=%d, want one buy", env.executor.buys, env.executor.sells)
	}
}

func TestMonitor_ExpiryRunsBeforeEvaluation(t *testing.T) {
	env := newMonitorEnv(map[string]float64{"MintA": 0.5})
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env.monitor.nowFunc = func() time.Time { return base }

	past := base.Add(-time.Minute).UnixMilli()
	future := base.Add(time.Minute).UnixMilli()
	boundary := base.UnixMilli()

	insertOrder(t, env.store, &domain.Order{
		OrderID: "expired", AgentID: "a", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
		ExpiresAt: &past,
	})
	insertOrder(t, env.store, &domain.Order{
		OrderID: "at-boundary", AgentID: "a", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
		ExpiresAt: &boundary,
	})
	insertOrder(t, env.store, &domain.Order{
		OrderID: "live", AgentID: "a", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
		ExpiresAt: &future,
	})

	stats, err := env.monitor.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Expired != 2 {
		t.Errorf("expired = %d, want 2", stats.Expired)
	}
	// Expired orders are not evaluated or executed, even though the price
	// satisfies their predicate.
	if stats.Evaluated != 1 || stats.Executed != 1 {
		t.Errorf("stats = %+v, want evaluated=1 executed=1", stats)
	}

	for _, id := range []string{"expired", "at-boundary"} {
		o, err := env.store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%s): %v", id, err)
		}
		if o.Status != domain.OrderStatusExpired {
			t.Errorf("%s status = %s, want expired", id, o.Status)
		}
	}
}

func TestMonitor_PriceFailureSkipsToken(t *testing.T) {
	env := newMonitorEnv(map[string]float64{"MintB": 0.5})
	ctx := context.Background()

	insertOrder(t, env.store, &domain.Order{
		OrderID: "unpriced", AgentID: "a", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
	})
	insertOrder(t, env.store, &domain.Order{
		OrderID: "priced", AgentID: "a", TokenMint: "MintB",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
	})

	stats, err := env.monitor.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.PriceFailures != 1 || stats.TokensFetched != 1 {
		t.Errorf("stats = %+v, want fetched=1 failures=1", stats)
	}
	if stats.Executed != 1 {
		t.Errorf("executed = %d, want 1 (other token still settles)", stats.Executed)
	}

	// The skipped order is untouched and eligible next cycle.
	o, err := env.store.GetByID(ctx, "unpriced")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if o.Status != domain.OrderStatusActive {
		t.Errorf("status = %s, want active", o.Status)
	}
}

func TestMonitor_FailedExecutionReverts(t *testing.T) {
	env := newMonitorEnv(map[string]float64{"MintA": 0.5})
	env.executor.fail = true
	ctx := context.Background()

	insertOrder(t, env.store, &domain.Order{
		OrderID: "o1", AgentID: "a", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
	})

	stats, err := env.monitor.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Triggered != 1 || stats.Failed != 1 || stats.Executed != 0 {
		t.Fatalf("stats = %+v, want triggered=1 failed=1", stats)
	}

	o, err := env.store.GetByID(ctx, "o1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if o.Status != domain.OrderStatusActive {
		t.Errorf("status = %s, want active after revert", o.Status)
	}

	fills, err := env.fills.GetByOrderID(ctx, "o1")
	if err != nil {
		t.Fatalf("GetByOrderID: %v", err)
	}
	if len(fills) != 1 || fills[0].Success || fills[0].Error != "slippage exceeded" {
		t.Errorf("fills = %+v, want one failed fill with error", fills)
	}
	if len(env.events.events) != 0 {
		t.Errorf("expected no events on failure, got %d", len(env.events.events))
	}

	// Recovered executor settles the order on the next cycle.
	env.executor.fail = false
	stats, err = env.monitor.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Executed != 1 {
		t.Fatalf("stats = %+v, want executed=1 on retry", stats)
	}
	fills, _ = env.fills.GetByOrderID(ctx, "o1")
	if len(fills) != 2 {
		t.Errorf("got %d fills, want 2 (failed then successful)", len(fills))
	}
}

func TestMonitor_TransportErrorReverts(t *testing.T) {
	env := newMonitorEnv(map[string]float64{"MintA": 0.5})
	env.executor.err = errors.New("rpc timeout")
	ctx := context.Background()

	insertOrder(t, env.store, &domain.Order{
		OrderID: "o1", AgentID: "a", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
	})

	stats, err := env.monitor.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("stats = %+v, want failed=1", stats)
	}
	fills, _ := env.fills.GetByOrderID(ctx, "o1")
	if len(fills) != 1 || fills[0].Error != "rpc timeout" {
		t.Errorf("fills = %+v, want failed fill carrying transport error", fills)
	}
}

func TestMonitor_ExecTimeout(t *testing.T) {
	env := newMonitorEnv(map[string]float64{"MintA": 0.5})
	env.executor.delay = 200 * time.Millisecond
	env.monitor.execTimeout = 20 * time.Millisecond
	ctx := context.Background()

	insertOrder(t, env.store, &domain.Order{
		OrderID: "o1", AgentID: "a", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
	})

	stats, err := env.monitor.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("stats = %+v, want failed=1 on timeout", stats)
	}
	o, _ := env.store.GetByID(ctx, "o1")
	if o.Status != domain.OrderStatusActive {
		t.Errorf("status = %s, want active after timeout revert", o.Status)
	}
}

func TestMonitor_NoDoubleExecution(t *testing.T) {
	// Two monitors sharing one store race over the same order; the status
	// compare-and-swap lets exactly one claim it.
	store := memory.NewOrderStore()
	fills := memory.NewOrderFillStore()
	source := &stubSource{prices: map[string]float64{"MintA": 0.5}}
	executor := &stubExecutor{}

	newM := func() *Monitor {
		return NewMonitor(MonitorOptions{
			OrderStore:     store,
			OrderFillStore: fills,
			Prices:         source,
			Executor:       executor,
			VsToken:        "SOL",
		})
	}
	m1, m2 := newM(), newM()

	ctx := context.Background()
	insertOrder(t, store, &domain.Order{
		OrderID: "o1", AgentID: "a", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	totalExecuted := 0
	for _, m := range []*Monitor{m1, m2} {
		wg.Add(1)
		go func(m *Monitor) {
			defer wg.Done()
			stats, err := m.RunCycle(ctx)
			if err != nil {
				t.Errorf("RunCycle: %v", err)
				return
			}
			mu.Lock()
			totalExecuted += stats.Executed
			mu.Unlock()
		}(m)
	}
	wg.Wait()

	if totalExecuted != 1 {
		t.Errorf("executed %d times across racing cycles, want 1", totalExecuted)
	}
	got, err := fills.GetByOrderID(ctx, "o1")
	if err != nil {
		t.Fatalf("GetByOrderID: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d fills, want 1", len(got))
	}
}

func TestMonitor_CycleOverlapGuard(t *testing.T) {
	env := newMonitorEnv(map[string]float64{"MintA": 0.5})
	env.executor.delay = 100 * time.Millisecond
	ctx := context.Background()

	insertOrder(t, env.store, &domain.Order{
		OrderID: "o1", AgentID: "a", TokenMint: "MintA",
		OrderType: domain.OrderTypeStopLoss, TriggerPrice: 0.9, Amount: 10,
	})

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		if _, err := env.monitor.RunCycle(ctx); err != nil {
			t.Errorf("RunCycle: %v", err)
		}
	}()
	<-started
	time.Sleep(20 * time.Millisecond) // let the first cycle reach execution

	if _, err := env.monitor.RunCycle(ctx); !errors.Is(err, ErrCycleInFlight) {
		t.Errorf("expected ErrCycleInFlight, got %v", err)
	}
	<-done

	// The guard releases once the cycle finishes.
	if _, err := env.monitor.RunCycle(ctx); err != nil {
		t.Errorf("RunCycle after completion: %v", err)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	env := newMonitorEnv(map[string]float64{})
	env.monitor.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.monitor.Start(ctx)
	time.Sleep(25 * time.Millisecond)
	env.monitor.Stop()

	env.source.mu.Lock()
	calls := env.source.calls
	env.source.mu.Unlock()
	if calls != 0 {
		t.Errorf("no active orders, expected zero price fetches, got %d", calls)
	}
	// Stop is idempotent.
	env.monitor.Stop()
}
