package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/storage"
)

// CurveStore implements storage.CurveStore using PostgreSQL.
type CurveStore struct {
	pool *Pool
}

// NewCurveStore creates a new CurveStore.
func NewCurveStore(pool *Pool) *CurveStore {
	return &CurveStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CurveStore = (*CurveStore)(nil)

const curveColumns = `
	curve_id, agent_id, token_mint, tokens_sold, total_value_locked,
	graduated, graduated_at, pool_address, version, created_at, updated_at
`

// NUMERIC travels as text so decimal values survive without float rounding.
const curveSelectColumns = `
	curve_id, agent_id, token_mint, tokens_sold, total_value_locked::text,
	graduated, graduated_at, pool_address, version, created_at, updated_at
`

// Insert adds a new curve. Returns ErrDuplicateKey if curve_id or token_mint exists.
func (s *CurveStore) Insert(ctx context.Context, c *domain.CurveState) error {
	query := `
		INSERT INTO curves (` + curveColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		c.CurveID,
		c.AgentID,
		c.TokenMint,
		c.TokensSold,
		c.TotalValueLocked.String(),
		c.Graduated,
		c.GraduatedAt,
		c.PoolAddress,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert curve: %w", err)
	}
	return nil
}

// GetByID retrieves a curve by its ID. Returns ErrNotFound if not exists.
func (s *CurveStore) GetByID(ctx context.Context, curveID string) (*domain.CurveState, error) {
	query := `SELECT ` + curveSelectColumns + ` FROM curves WHERE curve_id = $1`
	return s.getOne(ctx, query, curveID)
}

// GetByTokenMint retrieves the curve for a token mint. Returns ErrNotFound if not exists.
func (s *CurveStore) GetByTokenMint(ctx context.Context, mint string) (*domain.CurveState, error) {
	query := `SELECT ` + curveSelectColumns + ` FROM curves WHERE token_mint = $1`
	return s.getOne(ctx, query, mint)
}

func (s *CurveStore) getOne(ctx context.Context, query string, arg interface{}) (*domain.CurveState, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	c, err := scanCurve(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select curve: %w", err)
	}
	return c, nil
}

// ApplyTrade atomically persists the curve update and the trade row in one
// transaction. The curve UPDATE is guarded by the expected version; zero
// affected rows means another writer moved the curve first.
func (s *CurveStore) ApplyTrade(ctx context.Context, c *domain.CurveState, expectedVersion int64, t *domain.Trade) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE curves
		SET tokens_sold = $1, total_value_locked = $2, version = version + 1, updated_at = $3
		WHERE curve_id = $4 AND version = $5
	`,
		c.TokensSold,
		c.TotalValueLocked.String(),
		c.UpdatedAt,
		c.CurveID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update curve: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing curve from a lost version race.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM curves WHERE curve_id = $1)`, c.CurveID).Scan(&exists); err != nil {
			return fmt.Errorf("check curve exists: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trades (
			trade_id, curve_id, trader, side, token_amount, settlement_amount,
			platform_fee, price_per_token, tx_signature, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		t.TradeID,
		t.CurveID,
		t.Trader,
		t.Side,
		t.TokenAmount,
		t.SettlementAmount.String(),
		t.PlatformFee.String(),
		t.PricePerToken.String(),
		t.TxSignature,
		t.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// MarkGraduated sets the terminal graduated state, conditional on graduated=false.
func (s *CurveStore) MarkGraduated(ctx context.Context, curveID, poolAddress string, graduatedAt int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE curves
		SET graduated = TRUE, graduated_at = $1, pool_address = $2,
		    version = version + 1, updated_at = $1
		WHERE curve_id = $3 AND graduated = FALSE
	`, graduatedAt, poolAddress, curveID)
	if err != nil {
		return fmt.Errorf("mark graduated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM curves WHERE curve_id = $1)`, curveID).Scan(&exists); err != nil {
			return fmt.Errorf("check curve exists: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrStateConflict
	}
	return nil
}

// scanCurve scans one curve row.
func scanCurve(row pgx.Row) (*domain.CurveState, error) {
	var c domain.CurveState
	var tvl string

	err := row.Scan(
		&c.CurveID,
		&c.AgentID,
		&c.TokenMint,
		&c.TokensSold,
		&tvl,
		&c.Graduated,
		&c.GraduatedAt,
		&c.PoolAddress,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.TotalValueLocked, err = decimal.NewFromString(tvl)
	if err != nil {
		return nil, fmt.Errorf("parse total_value_locked: %w", err)
	}
	return &c, nil
}
