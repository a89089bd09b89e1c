package domain

// Event types published by the core engines. Delivery is fire-and-forget;
// the engines never block on or retry event consumers.
const (
	EventTradeExecuted = "trade_executed"
	EventPriceUpdate   = "price_update"
	EventGraduation    = "graduation"
)

// Event is a notification emitted by the core.
type Event struct {
	Type      string      `json:"type"`
	AgentID   string      `json:"agentId,omitempty"`
	TokenMint string      `json:"tokenMint,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"` // Unix timestamp ms
}

// PricePoint is one observed oracle price, recorded for analytics.
// Corresponds to the price_history table in ClickHouse.
type PricePoint struct {
	TokenMint   string  // token mint address
	VsToken     string  // quote currency mint
	TimestampMs int64   // observation time (ms)
	Price       float64 // observed price
}
