package domain

import "github.com/shopspring/decimal"

// Trade is an immutable record of one settled curve trade.
// Corresponds to the trades table in PostgreSQL. Never updated or deleted;
// the unique tx_signature is the idempotency guard against resubmission.
type Trade struct {
	TradeID          string          // deterministic hash
	CurveID          string          // FK to curves
	Trader           string          // trader wallet address
	Side             string          // "buy" | "sell"
	TokenAmount      int64           // tokens bought or sold
	SettlementAmount decimal.Decimal // pre-fee cost or proceeds
	PlatformFee      decimal.Decimal // fee charged on this trade
	PricePerToken    decimal.Decimal // curve price after the trade
	TxSignature      string          // unique settlement transaction signature
	Timestamp        int64           // Unix timestamp in milliseconds
}

// Trade side constants
const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"
)
