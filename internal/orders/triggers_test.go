package orders

import (
	"testing"

	"agent-launchpad/internal/domain"
)

func TestShouldTrigger(t *testing.T) {
	tests := []struct {
		name      string
		orderType string
		price     float64
		trigger   float64
		want      bool
	}{
		{"stop loss below", domain.OrderTypeStopLoss, 0.85, 0.9, true},
		{"stop loss at boundary", domain.OrderTypeStopLoss, 0.9, 0.9, true},
		{"stop loss above", domain.OrderTypeStopLoss, 0.91, 0.9, false},

		{"take profit above", domain.OrderTypeTakeProfit, 1.3, 1.25, true},
		{"take profit at boundary", domain.OrderTypeTakeProfit, 1.25, 1.25, true},
		{"take profit below", domain.OrderTypeTakeProfit, 1.24, 1.25, false},

		{"limit buy below", domain.OrderTypeLimitBuy, 0.4, 0.5, true},
		{"limit buy at boundary", domain.OrderTypeLimitBuy, 0.5, 0.5, true},
		{"limit buy above", domain.OrderTypeLimitBuy, 0.51, 0.5, false},

		{"limit sell above", domain.OrderTypeLimitSell, 2.1, 2.0, true},
		{"limit sell at boundary", domain.OrderTypeLimitSell, 2.0, 2.0, true},
		{"limit sell below", domain.OrderTypeLimitSell, 1.99, 2.0, false},

		{"unknown type", "trailing_stop", 1.0, 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldTrigger(tt.orderType, tt.price, tt.trigger)
			if got != tt.want {
				t.Errorf("ShouldTrigger(%s, %v, %v) = %v, want %v",
					tt.orderType, tt.price, tt.trigger, got, tt.want)
			}
		})
	}
}

func TestSide(t *testing.T) {
	if got := Side(domain.OrderTypeLimitBuy); got != domain.TradeSideBuy {
		t.Errorf("Side(limit_buy) = %s, want buy", got)
	}
	for _, typ := range []string{domain.OrderTypeStopLoss, domain.OrderTypeTakeProfit, domain.OrderTypeLimitSell} {
		if got := Side(typ); got != domain.TradeSideSell {
			t.Errorf("Side(%s) = %s, want sell", typ, got)
		}
	}
}

func TestTriggerDerivation(t *testing.T) {
	if got := StopLossTrigger(1.0, 10); got != 0.9 {
		t.Errorf("StopLossTrigger(1.0, 10) = %v, want 0.9", got)
	}
	if got := TakeProfitTrigger(1.0, 25); got != 1.25 {
		t.Errorf("TakeProfitTrigger(1.0, 25) = %v, want 1.25", got)
	}
	if got := StopLossTrigger(2.0, 50); got != 1.0 {
		t.Errorf("StopLossTrigger(2.0, 50) = %v, want 1.0", got)
	}
}
