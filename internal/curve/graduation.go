package curve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"agent-launchpad/internal/domain"
	"agent-launchpad/internal/storage"
)

// GraduationThreshold returns the tokens-sold count at which a curve graduates.
func (c *Coordinator) GraduationThreshold() int64 {
	return c.gradThreshold
}

// EvaluateGraduation checks a curve against the graduation threshold and,
// when it qualifies, performs the one-shot handoff. Returns true only when
// this call performed the transition; an already-graduated curve is a no-op.
func (c *Coordinator) EvaluateGraduation(ctx context.Context, curveID string) (bool, error) {
	release := c.locks.lock(curveID)
	defer release()

	cs, err := c.store.GetByID(ctx, curveID)
	if err != nil {
		return false, err
	}
	return c.maybeGraduate(ctx, cs)
}

// maybeGraduate performs the ACCUMULATING -> GRADUATED transition when the
// threshold is met. Caller must hold the per-curve lock. The conditional
// MarkGraduated in the store guards against a double transition even if two
// processes race: only one check-and-set can succeed.
func (c *Coordinator) maybeGraduate(ctx context.Context, cs *domain.CurveState) (bool, error) {
	if cs.Graduated || cs.TokensSold < c.gradThreshold {
		return false, nil
	}

	remaining := c.params.Supply - cs.TokensSold

	poolID, err := c.pools.CreatePool(ctx, cs.TokenMint, remaining, cs.TotalValueLocked)
	if err != nil {
		return false, fmt.Errorf("create pool for %s: %w", cs.TokenMint, err)
	}

	now := c.nowMs()
	if err := c.store.MarkGraduated(ctx, cs.CurveID, poolID, now); err != nil {
		if errors.Is(err, storage.ErrStateConflict) {
			// Lost the race to another process; the transition already happened.
			c.logger.Warn("curve already graduated", zap.String("curve_id", cs.CurveID))
			return false, nil
		}
		return false, fmt.Errorf("mark graduated: %w", err)
	}

	cs.Graduated = true
	cs.GraduatedAt = &now
	cs.PoolAddress = &poolID
	cs.Version++

	if c.metrics != nil {
		c.metrics.GraduationsTotal.Inc()
	}
	c.logger.Info("curve graduated",
		zap.String("curve_id", cs.CurveID),
		zap.String("token_mint", cs.TokenMint),
		zap.String("pool", poolID),
		zap.Int64("tokens_sold", cs.TokensSold),
		zap.String("tvl", cs.TotalValueLocked.String()))

	if c.publisher != nil {
		c.publisher.Publish(domain.Event{
			Type:      domain.EventGraduation,
			AgentID:   cs.AgentID,
			TokenMint: cs.TokenMint,
			Payload: map[string]interface{}{
				"curveId":     cs.CurveID,
				"poolAddress": poolID,
				"tokensSold":  cs.TokensSold,
				"tvl":         cs.TotalValueLocked.String(),
			},
			Timestamp: now,
		})
	}

	return true, nil
}
