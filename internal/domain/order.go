package domain

// Order is a conditional trade instruction evaluated against live prices.
// Corresponds to the orders table in PostgreSQL. Status is the only mutable
// field until a terminal state; terminal states are permanent.
type Order struct {
	OrderID      string  // PRIMARY KEY (uuid)
	AgentID      string  // owning agent
	TokenMint    string  // token the order watches
	OrderType    string  // stop_loss | take_profit | limit_buy | limit_sell
	Status       string  // active | triggered | executed | cancelled | expired
	EntryPrice   float64 // price at order creation
	TriggerPrice float64 // price threshold that fires the order
	Amount       float64 // trade size
	ExpiresAt    *int64  // Unix timestamp ms (nullable)
	CreatedAt    int64   // record creation timestamp (ms)

	// Set on successful execution
	ExecutedPrice       *float64
	ExecutedTxSignature *string
	ExecutedAt          *int64
}

// Order type constants
const (
	OrderTypeStopLoss   = "stop_loss"
	OrderTypeTakeProfit = "take_profit"
	OrderTypeLimitBuy   = "limit_buy"
	OrderTypeLimitSell  = "limit_sell"
)

// Order status constants
const (
	OrderStatusActive    = "active"
	OrderStatusTriggered = "triggered"
	OrderStatusExecuted  = "executed"
	OrderStatusCancelled = "cancelled"
	OrderStatusExpired   = "expired"
)

// ValidOrderType reports whether t is a known order type.
func ValidOrderType(t string) bool {
	switch t {
	case OrderTypeStopLoss, OrderTypeTakeProfit, OrderTypeLimitBuy, OrderTypeLimitSell:
		return true
	}
	return false
}

// TerminalOrderStatus reports whether s is a permanent order status.
func TerminalOrderStatus(s string) bool {
	switch s {
	case OrderStatusExecuted, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

// OrderFill is an append-only record of one execution attempt for an order.
// Failed attempts are recorded with Success=false and the order returns to
// active for the next monitor cycle.
type OrderFill struct {
	FillID      string  // PRIMARY KEY (uuid)
	OrderID     string  // FK to orders
	TokenMint   string  // token traded
	Side        string  // "buy" | "sell"
	Amount      float64 // trade size
	Price       float64 // observed price at execution attempt
	TxSignature string  // swap transaction signature (empty on failure)
	Success     bool
	Error       string // collaborator error message (empty on success)
	Timestamp   int64  // Unix timestamp in milliseconds
}
