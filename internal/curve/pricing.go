// Package curve implements the bonding-curve pricing model and the per-curve
// trade coordinator that settles buys and sells against it.
package curve

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Pricing errors. All are rejected synchronously and never retried.
var (
	// ErrInvalidAmount is returned for a zero or negative token amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSupplyExceeded is returned when a buy would push tokens sold past the
	// curve supply.
	ErrSupplyExceeded = errors.New("amount exceeds remaining curve supply")

	// ErrInsufficientTokens is returned when a sell exceeds tokens sold.
	ErrInsufficientTokens = errors.New("amount exceeds tokens sold")
)

var two = decimal.NewFromInt(2)

// PricingParams defines one linear bonding curve: price(sold) = P0 + slope*sold.
// All functions on PricingParams are deterministic and side-effect-free; a
// quote computed for display and the quote recomputed at settlement are
// identical given the same sold count.
type PricingParams struct {
	BasePrice decimal.Decimal // P0, price of the first token
	Slope     decimal.Decimal // price increase per token sold
	Supply    int64           // total tokens sellable on the curve
	FeeRate   decimal.Decimal // platform fee rate, e.g. 0.01
}

// BuyQuote is the priced outcome of buying TokenAmount tokens.
type BuyQuote struct {
	TokenAmount   int64
	Cost          decimal.Decimal // curve integral, excludes fee
	Fee           decimal.Decimal // FeeRate * Cost, charged on top
	TotalCost     decimal.Decimal // Cost + Fee
	PricePerToken decimal.Decimal // curve price after the buy
	PriceImpact   decimal.Decimal // relative price movement caused by the buy
}

// SellQuote is the priced outcome of selling TokenAmount tokens.
type SellQuote struct {
	TokenAmount   int64
	Proceeds      decimal.Decimal // curve integral, before fee
	Fee           decimal.Decimal // FeeRate * Proceeds, deducted
	NetProceeds   decimal.Decimal // Proceeds - Fee
	PricePerToken decimal.Decimal // curve price after the sell
	PriceImpact   decimal.Decimal // relative price movement caused by the sell
}

// Price returns the spot price after sold tokens have been sold.
func (p PricingParams) Price(sold int64) decimal.Decimal {
	return p.BasePrice.Add(p.Slope.Mul(decimal.NewFromInt(sold)))
}

// BuyCost returns the curve integral for buying amount tokens at the given
// sold count: P0*amount + slope*amount^2/2 + slope*sold*amount.
func (p PricingParams) BuyCost(sold, amount int64) decimal.Decimal {
	amt := decimal.NewFromInt(amount)
	soldD := decimal.NewFromInt(sold)

	base := p.BasePrice.Mul(amt)
	quad := p.Slope.Mul(amt).Mul(amt).Div(two)
	linear := p.Slope.Mul(soldD).Mul(amt)
	return base.Add(quad).Add(linear)
}

// SellProceeds returns the curve integral released by selling amount tokens
// at the given sold count: BuyCost(0, sold) - BuyCost(0, sold-amount).
func (p PricingParams) SellProceeds(sold, amount int64) decimal.Decimal {
	return p.BuyCost(0, sold).Sub(p.BuyCost(0, sold-amount))
}

// QuoteBuy prices a buy of amount tokens against the current sold count.
func (p PricingParams) QuoteBuy(sold, amount int64) (*BuyQuote, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if sold+amount > p.Supply {
		return nil, fmt.Errorf("%w: sold=%d amount=%d supply=%d", ErrSupplyExceeded, sold, amount, p.Supply)
	}

	cost := p.BuyCost(sold, amount)
	fee := p.FeeRate.Mul(cost)

	return &BuyQuote{
		TokenAmount:   amount,
		Cost:          cost,
		Fee:           fee,
		TotalCost:     cost.Add(fee),
		PricePerToken: p.Price(sold + amount),
		PriceImpact:   p.priceImpact(sold, sold+amount),
	}, nil
}

// QuoteSell prices a sell of amount tokens against the current sold count.
func (p PricingParams) QuoteSell(sold, amount int64) (*SellQuote, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount > sold {
		return nil, fmt.Errorf("%w: sold=%d amount=%d", ErrInsufficientTokens, sold, amount)
	}

	proceeds := p.SellProceeds(sold, amount)
	fee := p.FeeRate.Mul(proceeds)

	return &SellQuote{
		TokenAmount:   amount,
		Proceeds:      proceeds,
		Fee:           fee,
		NetProceeds:   proceeds.Sub(fee),
		PricePerToken: p.Price(sold - amount),
		PriceImpact:   p.priceImpact(sold, sold-amount),
	}, nil
}

// priceImpact returns (price(after) - price(before)) / price(before).
func (p PricingParams) priceImpact(before, after int64) decimal.Decimal {
	prev := p.Price(before)
	if prev.IsZero() {
		return decimal.Zero
	}
	return p.Price(after).Sub(prev).Div(prev)
}
