// Package oracle provides quoted token prices behind a time-bounded cache.
// Quotes are ephemeral and never persisted; observed prices may optionally be
// mirrored to an analytics sink.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned when no price can be produced for a token.
// Callers skip the token for the cycle rather than failing the whole sweep.
var ErrUnavailable = errors.New("price unavailable")

// Quote is one observed price for a token pair.
type Quote struct {
	Token     string
	VsToken   string
	Price     float64
	FetchedAt time.Time
}

// Source produces live quotes.
type Source interface {
	// GetPrice returns the current price of token denominated in vsToken.
	// Returns ErrUnavailable when the source has no quote for the pair.
	GetPrice(ctx context.Context, token, vsToken string) (*Quote, error)
}

// quoteKey is the cache key for a token pair.
func quoteKey(token, vsToken string) string {
	return fmt.Sprintf("%s|%s", token, vsToken)
}
