package curve

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func testParams() PricingParams {
	return PricingParams{
		BasePrice: decimal.RequireFromString("0.00000001"),
		Slope:     decimal.RequireFromString("0.00000000001"),
		Supply:    1_000_000_000,
		FeeRate:   decimal.RequireFromString("0.01"),
	}
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPrice_Linear(t *testing.T) {
	p := testParams()

	if got := p.Price(0); !got.Equal(d("0.00000001")) {
		t.Errorf("Price(0) = %s, want 0.00000001", got)
	}
	if got := p.Price(1_000_000); !got.Equal(d("0.00001001")) {
		t.Errorf("Price(1e6) = %s, want 0.00001001", got)
	}
	if got := p.Price(1_000_000_000); !got.Equal(d("0.01000001")) {
		t.Errorf("Price(1e9) = %s, want 0.01000001", got)
	}
}

func TestPrice_MonotonicInSold(t *testing.T) {
	p := testParams()

	prev := p.Price(0)
	for _, sold := range []int64{1, 100, 10_000, 1_000_000, 500_000_000, 1_000_000_000} {
		cur := p.Price(sold)
		if !cur.GreaterThan(prev) {
			t.Fatalf("Price(%d) = %s, not greater than previous %s", sold, cur, prev)
		}
		prev = cur
	}
}

func TestQuoteBuy_WorkedExample(t *testing.T) {
	p := testParams()

	q, err := p.QuoteBuy(0, 1_000_000)
	if err != nil {
		t.Fatalf("QuoteBuy failed: %v", err)
	}

	// cost = P0*amt + slope*amt^2/2 = 0.01 + 5 = 5.01
	if !q.Cost.Equal(d("5.01")) {
		t.Errorf("Cost = %s, want 5.01", q.Cost)
	}
	if !q.Fee.Equal(d("0.0501")) {
		t.Errorf("Fee = %s, want 0.0501", q.Fee)
	}
	if !q.TotalCost.Equal(d("5.0601")) {
		t.Errorf("TotalCost = %s, want 5.0601", q.TotalCost)
	}
	if !q.PricePerToken.Equal(d("0.00001001")) {
		t.Errorf("PricePerToken = %s, want 0.00001001", q.PricePerToken)
	}
	if !q.PriceImpact.Equal(d("1000")) {
		t.Errorf("PriceImpact = %s, want 1000", q.PriceImpact)
	}
}

func TestQuoteBuy_IncludesSoldOffset(t *testing.T) {
	p := testParams()

	q0, err := p.QuoteBuy(0, 1000)
	if err != nil {
		t.Fatalf("QuoteBuy at sold=0 failed: %v", err)
	}
	q1, err := p.QuoteBuy(1_000_000, 1000)
	if err != nil {
		t.Fatalf("QuoteBuy at sold=1e6 failed: %v", err)
	}

	// slope*sold*amt = 1e-11 * 1e6 * 1e3 = 0.01
	if !q1.Cost.Sub(q0.Cost).Equal(d("0.01")) {
		t.Errorf("cost offset = %s, want 0.01", q1.Cost.Sub(q0.Cost))
	}
}

func TestQuoteBuy_Bounds(t *testing.T) {
	p := testParams()

	if _, err := p.QuoteBuy(0, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("amount=0: got %v, want ErrInvalidAmount", err)
	}
	if _, err := p.QuoteBuy(0, -5); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("amount<0: got %v, want ErrInvalidAmount", err)
	}
	if _, err := p.QuoteBuy(p.Supply, 1); !errors.Is(err, ErrSupplyExceeded) {
		t.Errorf("sold=supply: got %v, want ErrSupplyExceeded", err)
	}
	if _, err := p.QuoteBuy(p.Supply-10, 11); !errors.Is(err, ErrSupplyExceeded) {
		t.Errorf("crossing supply: got %v, want ErrSupplyExceeded", err)
	}

	// Exactly exhausting the supply is allowed.
	if _, err := p.QuoteBuy(p.Supply-10, 10); err != nil {
		t.Errorf("exact fill: unexpected error %v", err)
	}
}

func TestQuoteSell_Bounds(t *testing.T) {
	p := testParams()

	if _, err := p.QuoteSell(100, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("amount=0: got %v, want ErrInvalidAmount", err)
	}
	if _, err := p.QuoteSell(100, 101); !errors.Is(err, ErrInsufficientTokens) {
		t.Errorf("amount>sold: got %v, want ErrInsufficientTokens", err)
	}
	if _, err := p.QuoteSell(100, 100); err != nil {
		t.Errorf("full sellback: unexpected error %v", err)
	}
}

func TestQuoteSell_MirrorsBuy(t *testing.T) {
	p := testParams()
	const amount = 1_000_000

	buy, err := p.QuoteBuy(0, amount)
	if err != nil {
		t.Fatalf("QuoteBuy failed: %v", err)
	}
	sell, err := p.QuoteSell(amount, amount)
	if err != nil {
		t.Fatalf("QuoteSell failed: %v", err)
	}

	// Selling everything just bought releases exactly the curve integral.
	if !sell.Proceeds.Equal(buy.Cost) {
		t.Errorf("Proceeds = %s, want %s", sell.Proceeds, buy.Cost)
	}

	// The round trip loses exactly the two fees.
	lost := buy.TotalCost.Sub(sell.NetProceeds)
	if !lost.Equal(buy.Fee.Add(sell.Fee)) {
		t.Errorf("round-trip loss = %s, want %s", lost, buy.Fee.Add(sell.Fee))
	}

	if !sell.PricePerToken.Equal(p.Price(0)) {
		t.Errorf("PricePerToken after full sell = %s, want %s", sell.PricePerToken, p.Price(0))
	}
}

func TestQuoteBuy_Deterministic(t *testing.T) {
	p := testParams()

	a, err := p.QuoteBuy(123_456, 7890)
	if err != nil {
		t.Fatalf("QuoteBuy failed: %v", err)
	}
	b, err := p.QuoteBuy(123_456, 7890)
	if err != nil {
		t.Fatalf("QuoteBuy failed: %v", err)
	}

	if !a.TotalCost.Equal(b.TotalCost) || !a.PriceImpact.Equal(b.PriceImpact) {
		t.Errorf("identical inputs produced different quotes: %+v vs %+v", a, b)
	}
}

func TestPriceImpact_SellNegative(t *testing.T) {
	p := testParams()

	sell, err := p.QuoteSell(1_000_000, 500_000)
	if err != nil {
		t.Fatalf("QuoteSell failed: %v", err)
	}
	if !sell.PriceImpact.IsNegative() {
		t.Errorf("sell impact = %s, want negative", sell.PriceImpact)
	}
}
