// Package orders implements the conditional-order trigger and execution
// engine: a monitor that evaluates pending orders against oracle prices and
// settles the ones whose predicates hold.
package orders

import "agent-launchpad/internal/domain"

// ShouldTrigger reports whether an order's predicate holds at the observed
// price. All comparisons are inclusive at the boundary.
func ShouldTrigger(orderType string, price, triggerPrice float64) bool {
	switch orderType {
	case domain.OrderTypeStopLoss, domain.OrderTypeLimitBuy:
		return price <= triggerPrice
	case domain.OrderTypeTakeProfit, domain.OrderTypeLimitSell:
		return price >= triggerPrice
	}
	return false
}

// Side returns the trade side a triggered order executes.
func Side(orderType string) string {
	if orderType == domain.OrderTypeLimitBuy {
		return domain.TradeSideBuy
	}
	return domain.TradeSideSell
}

// StopLossTrigger derives the trigger price from an entry price and a
// percentage drop: entry 1.0 with 10% yields 0.9.
func StopLossTrigger(entryPrice, percent float64) float64 {
	return entryPrice * (1 - percent/100)
}

// TakeProfitTrigger derives the trigger price from an entry price and a
// percentage gain: entry 1.0 with 25% yields 1.25.
func TakeProfitTrigger(entryPrice, percent float64) float64 {
	return entryPrice * (1 + percent/100)
}
