package domain

import "github.com/shopspring/decimal"

// CurveState holds the bonding-curve position for one launched agent token.
// Corresponds to the curves table in PostgreSQL. Mutated exclusively by the
// trade coordinator; becomes immutable once Graduated is set.
type CurveState struct {
	CurveID          string          // PRIMARY KEY, deterministic hash
	AgentID          string          // owning agent
	TokenMint        string          // token mint address
	TokensSold       int64           // cumulative tokens sold, 0 <= x <= curve supply
	TotalValueLocked decimal.Decimal // settlement-currency inflow, fees excluded
	Graduated        bool            // terminal once true
	GraduatedAt      *int64          // Unix timestamp ms (nullable)
	PoolAddress      *string         // external pool address (nullable)
	Version          int64           // optimistic concurrency counter
	CreatedAt        int64           // record creation timestamp (ms)
	UpdatedAt        int64           // last mutation timestamp (ms)
}
