package curve

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/events"
	"agent-launchpad/internal/idhash"
	"agent-launchpad/internal/observability"
	"agent-launchpad/internal/storage"
)

// ChainConfirmation is the chain collaborator's view of a settlement
// transaction. Transferred is the settlement-currency amount moved on chain,
// nil when the collaborator cannot derive it.
type ChainConfirmation struct {
	Confirmed   bool
	Slot        int64
	Transferred *decimal.Decimal
}

// ChainConfirmer verifies client-submitted settlement signatures.
type ChainConfirmer interface {
	ConfirmTransaction(ctx context.Context, signature string) (*ChainConfirmation, error)
}

// PoolCreator hands off graduated liquidity to an external pool.
type PoolCreator interface {
	CreatePool(ctx context.Context, tokenMint string, tokenAmount int64, settlementAmount decimal.Decimal) (string, error)
}

// Coordinator owns curve lifecycles: it quotes trades against the pricing
// model, settles them atomically, and evaluates graduation after each trade.
// Mutations for one curve are serialized by a per-curve lock; the store's
// version CAS is the second line of defense.
type Coordinator struct {
	params        PricingParams
	gradThreshold int64           // tokens sold at which graduation fires
	amountTol     decimal.Decimal // relative tolerance for on-chain amount check

	store     storage.CurveStore
	trades    storage.TradeStore
	chain     ChainConfirmer
	pools     PoolCreator
	publisher events.Publisher

	locks   *keyLock
	metrics *observability.Metrics
	logger  *zap.Logger
	nowFunc func() time.Time
}

// Options contains configuration for creating a Coordinator.
type Options struct {
	Params PricingParams

	// GraduationFraction of curve supply at which graduation fires.
	// Default: 0.99.
	GraduationFraction float64

	// AmountTolerance is the allowed relative deviation between the quoted
	// settlement amount and the on-chain transfer. Default: 0.005.
	AmountTolerance decimal.Decimal

	CurveStore storage.CurveStore
	TradeStore storage.TradeStore
	Chain      ChainConfirmer
	Pools      PoolCreator
	Publisher  events.Publisher

	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(opts Options) *Coordinator {
	fraction := opts.GraduationFraction
	if fraction <= 0 || fraction > 1 {
		fraction = 0.99
	}
	tol := opts.AmountTolerance
	if tol.IsZero() {
		tol = decimal.NewFromFloat(0.005)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		params:        opts.Params,
		gradThreshold: int64(math.Ceil(fraction * float64(opts.Params.Supply))),
		amountTol:     tol,
		store:         opts.CurveStore,
		trades:        opts.TradeStore,
		chain:         opts.Chain,
		pools:         opts.Pools,
		publisher:     opts.Publisher,
		locks:         newKeyLock(),
		metrics:       opts.Metrics,
		logger:        logger,
		nowFunc:       time.Now,
	}
}

// Params returns the pricing parameters shared by all curves.
func (c *Coordinator) Params() PricingParams {
	return c.params
}

// Launch creates the curve for a newly launched agent token.
func (c *Coordinator) Launch(ctx context.Context, agentID, tokenMint string) (*domain.CurveState, error) {
	if agentID == "" || tokenMint == "" {
		return nil, storage.ErrInvalidInput
	}

	now := c.nowMs()
	cs := &domain.CurveState{
		CurveID:          idhash.ComputeCurveID(agentID, tokenMint),
		AgentID:          agentID,
		TokenMint:        tokenMint,
		TokensSold:       0,
		TotalValueLocked: decimal.Zero,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := c.store.Insert(ctx, cs); err != nil {
		return nil, fmt.Errorf("insert curve: %w", err)
	}

	if c.metrics != nil {
		c.metrics.CurvesLaunched.Inc()
	}
	c.logger.Info("curve launched",
		zap.String("curve_id", cs.CurveID),
		zap.String("agent_id", agentID),
		zap.String("token_mint", tokenMint))

	return cs, nil
}

// GetCurve retrieves the current state of a curve.
func (c *Coordinator) GetCurve(ctx context.Context, curveID string) (*domain.CurveState, error) {
	return c.store.GetByID(ctx, curveID)
}

// QuoteBuy prices a buy against the curve's current sold count.
func (c *Coordinator) QuoteBuy(ctx context.Context, curveID string, amount int64) (*BuyQuote, error) {
	cs, err := c.store.GetByID(ctx, curveID)
	if err != nil {
		return nil, err
	}
	if cs.Graduated {
		return nil, ErrGraduated
	}
	if c.metrics != nil {
		c.metrics.QuoteRequests.WithLabelValues(domain.TradeSideBuy).Inc()
	}
	return c.params.QuoteBuy(cs.TokensSold, amount)
}

// QuoteSell prices a sell against the curve's current sold count.
func (c *Coordinator) QuoteSell(ctx context.Context, curveID string, amount int64) (*SellQuote, error) {
	cs, err := c.store.GetByID(ctx, curveID)
	if err != nil {
		return nil, err
	}
	if cs.Graduated {
		return nil, ErrGraduated
	}
	if c.metrics != nil {
		c.metrics.QuoteRequests.WithLabelValues(domain.TradeSideSell).Inc()
	}
	return c.params.QuoteSell(cs.TokensSold, amount)
}

// TradeRequest describes one confirmed settlement to apply to a curve.
type TradeRequest struct {
	CurveID     string
	Trader      string // trader wallet address
	Amount      int64  // tokens to buy or sell
	TxSignature string // confirmed settlement transaction
}

// ApplyBuy settles a confirmed buy: it re-prices the trade against the
// current sold count, advances the curve, appends the trade row, then
// evaluates graduation. The curve update and trade insert commit as a
// single unit in the store.
func (c *Coordinator) ApplyBuy(ctx context.Context, req TradeRequest) (*domain.Trade, error) {
	t, err := c.applyBuy(ctx, req)
	c.observeTrade(domain.TradeSideBuy, err)
	return t, err
}

func (c *Coordinator) applyBuy(ctx context.Context, req TradeRequest) (*domain.Trade, error) {
	release := c.locks.lock(req.CurveID)
	defer release()

	cs, err := c.store.GetByID(ctx, req.CurveID)
	if err != nil {
		return nil, err
	}
	if cs.Graduated {
		return nil, ErrGraduated
	}

	quote, err := c.params.QuoteBuy(cs.TokensSold, req.Amount)
	if err != nil {
		return nil, err
	}

	if err := c.verifySettlement(ctx, req.TxSignature, quote.TotalCost); err != nil {
		return nil, err
	}

	now := c.nowMs()
	version := cs.Version
	cs.TokensSold += req.Amount
	cs.TotalValueLocked = cs.TotalValueLocked.Add(quote.Cost)
	cs.UpdatedAt = now

	trade := &domain.Trade{
		TradeID:          idhash.ComputeTradeID(cs.CurveID, req.TxSignature),
		CurveID:          cs.CurveID,
		Trader:           req.Trader,
		Side:             domain.TradeSideBuy,
		TokenAmount:      req.Amount,
		SettlementAmount: quote.Cost,
		PlatformFee:      quote.Fee,
		PricePerToken:    quote.PricePerToken,
		TxSignature:      req.TxSignature,
		Timestamp:        now,
	}

	if err := c.commitTrade(ctx, cs, version, trade); err != nil {
		return nil, err
	}

	if _, err := c.maybeGraduate(ctx, cs); err != nil {
		// The trade itself is committed; graduation retries on the next trade.
		c.logger.Error("graduation handoff failed",
			zap.String("curve_id", cs.CurveID), zap.Error(err))
	}

	c.publishTrade(cs, trade)
	return trade, nil
}

// ApplySell settles a confirmed sell, decreasing tokens sold and releasing
// value from the curve.
func (c *Coordinator) ApplySell(ctx context.Context, req TradeRequest) (*domain.Trade, error) {
	t, err := c.applySell(ctx, req)
	c.observeTrade(domain.TradeSideSell, err)
	return t, err
}

func (c *Coordinator) applySell(ctx context.Context, req TradeRequest) (*domain.Trade, error) {
	release := c.locks.lock(req.CurveID)
	defer release()

	cs, err := c.store.GetByID(ctx, req.CurveID)
	if err != nil {
		return nil, err
	}
	if cs.Graduated {
		return nil, ErrGraduated
	}

	quote, err := c.params.QuoteSell(cs.TokensSold, req.Amount)
	if err != nil {
		return nil, err
	}

	if err := c.verifySettlement(ctx, req.TxSignature, quote.NetProceeds); err != nil {
		return nil, err
	}

	now := c.nowMs()
	version := cs.Version
	cs.TokensSold -= req.Amount
	cs.TotalValueLocked = cs.TotalValueLocked.Sub(quote.Proceeds)
	cs.UpdatedAt = now

	trade := &domain.Trade{
		TradeID:          idhash.ComputeTradeID(cs.CurveID, req.TxSignature),
		CurveID:          cs.CurveID,
		Trader:           req.Trader,
		Side:             domain.TradeSideSell,
		TokenAmount:      req.Amount,
		SettlementAmount: quote.Proceeds,
		PlatformFee:      quote.Fee,
		PricePerToken:    quote.PricePerToken,
		TxSignature:      req.TxSignature,
		Timestamp:        now,
	}

	if err := c.commitTrade(ctx, cs, version, trade); err != nil {
		return nil, err
	}

	if _, err := c.maybeGraduate(ctx, cs); err != nil {
		c.logger.Error("graduation handoff failed",
			zap.String("curve_id", cs.CurveID), zap.Error(err))
	}

	c.publishTrade(cs, trade)
	return trade, nil
}

// verifySettlement confirms the signature with the chain collaborator and,
// when the on-chain transfer amount is derivable, checks it against the
// quoted amount within the configured tolerance.
func (c *Coordinator) verifySettlement(ctx context.Context, signature string, quoted decimal.Decimal) error {
	if signature == "" {
		return storage.ErrInvalidInput
	}

	conf, err := c.chain.ConfirmTransaction(ctx, signature)
	if err != nil {
		return fmt.Errorf("confirm transaction %s: %w", signature, err)
	}
	if !conf.Confirmed {
		return fmt.Errorf("%w: %s", ErrUnconfirmedTransaction, signature)
	}

	if conf.Transferred != nil {
		diff := conf.Transferred.Sub(quoted).Abs()
		if diff.GreaterThan(c.amountTol.Mul(quoted)) {
			return fmt.Errorf("%w: quoted=%s on-chain=%s",
				ErrAmountMismatch, quoted.String(), conf.Transferred.String())
		}
	}
	return nil
}

// commitTrade persists the curve update plus trade row and maps store errors
// onto the coordinator's taxonomy.
func (c *Coordinator) commitTrade(ctx context.Context, cs *domain.CurveState, expectedVersion int64, t *domain.Trade) error {
	err := c.store.ApplyTrade(ctx, cs, expectedVersion, t)
	if err == nil {
		cs.Version = expectedVersion + 1
		return nil
	}
	if errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("%w: %s", ErrDuplicateSignature, t.TxSignature)
	}
	return fmt.Errorf("apply trade: %w", err)
}

func (c *Coordinator) publishTrade(cs *domain.CurveState, t *domain.Trade) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(domain.Event{
		Type:      domain.EventTradeExecuted,
		AgentID:   cs.AgentID,
		TokenMint: cs.TokenMint,
		Payload:   t,
		Timestamp: t.Timestamp,
	})
}

// observeTrade counts settled and rejected trades by side and reason.
func (c *Coordinator) observeTrade(side string, err error) {
	if c.metrics == nil {
		return
	}
	if err == nil {
		c.metrics.TradesApplied.WithLabelValues(side).Inc()
		return
	}
	c.metrics.TradeFailures.WithLabelValues(failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrGraduated):
		return "graduated"
	case errors.Is(err, ErrDuplicateSignature):
		return "duplicate_signature"
	case errors.Is(err, ErrUnconfirmedTransaction):
		return "unconfirmed"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrSupplyExceeded),
		errors.Is(err, ErrInsufficientTokens),
		errors.Is(err, storage.ErrInvalidInput):
		return "validation"
	case errors.Is(err, storage.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}

func (c *Coordinator) nowMs() int64 {
	return c.nowFunc().UnixMilli()
}
