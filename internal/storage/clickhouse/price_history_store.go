package clickhouse

import (
	"context"
	"fmt"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using ClickHouse.
// The table is append-only; duplicate observations are harmless and collapse
// under the ReplacingMergeTree key.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk appends observed price points.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (
			token_mint, vs_token, timestamp_ms, price
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.TokenMint, p.VsToken, uint64(p.TimestampMs), p.Price,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTokenMint retrieves all points for a token, ordered by timestamp ASC.
func (s *PriceHistoryStore) GetByTokenMint(ctx context.Context, mint string) ([]*domain.PricePoint, error) {
	query := `
		SELECT token_mint, vs_token, timestamp_ms, price
		FROM price_history
		WHERE token_mint = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by token mint: %w", err)
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		var timestampMs uint64

		err := rows.Scan(&p.TokenMint, &p.VsToken, &timestampMs, &p.Price)
		if err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}

	return points, nil
}

// GetRange retrieves points for a token within [start, end] (inclusive).
func (s *PriceHistoryStore) GetRange(ctx context.Context, mint string, start, end int64) ([]*domain.PricePoint, error) {
	query := `
		SELECT token_mint, vs_token, timestamp_ms, price
		FROM price_history
		WHERE token_mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		var timestampMs uint64

		err := rows.Scan(&p.TokenMint, &p.VsToken, &timestampMs, &p.Price)
		if err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}

	return points, nil
}
