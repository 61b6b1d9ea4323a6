package ledger

import (
	"context"
	"fmt"
	"sort"

	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
	"agrostock/pkg/logger"

	"github.com/shopspring/decimal"
)

// Reconcile finds items whose cached quantity disagrees with the sum of
// their batch remainders and repairs them. By default the batches are the
// source of truth and the cached aggregate is rewritten. With Renormalize
// the stored aggregate is trusted instead and batch remainders are scaled
// to match it, which is the right call after restoring from a backup whose
// batch rows are known stale.
//
// Reconcile is idempotent: a second run right after the first finds no
// drift and changes nothing.
func (s *Service) Reconcile(ctx context.Context, opts ReconcileOptions) ([]Correction, error) {
	drifts, err := s.repo.ListDrifts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drifts: %w", err)
	}

	corrections := make([]Correction, 0, len(drifts))
	for _, d := range drifts {
		c, err := s.reconcileItem(ctx, d, opts)
		if err != nil {
			return corrections, fmt.Errorf("reconcile item %s: %w", d.ItemID, err)
		}
		corrections = append(corrections, c)
	}

	logger.Info(ctx, "reconciliation finished",
		"drifts", len(drifts),
		"renormalize", opts.Renormalize,
	)
	if len(corrections) > 0 {
		s.record(ctx, "reconcile", corrections[0].ItemID, corrections)
	}

	return corrections, nil
}

func (s *Service) reconcileItem(ctx context.Context, d Drift, opts ReconcileOptions) (Correction, error) {
	origin := entity.Origin{Module: "reconciliation", Note: "aggregate drift repair"}

	var c Correction
	err := s.mutate(ctx, "reconcile", d.ItemID, func(ctx context.Context) error {
		// Re-read under lock; the drift snapshot may be stale by now.
		it, err := s.repo.GetItemForUpdate(ctx, d.ItemID)
		if err != nil {
			return err
		}
		batches, err := s.repo.ListConsumableBatches(ctx, d.ItemID)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}
		actual := totalRemaining(batches)

		c = Correction{ItemID: it.ID, SKU: it.SKU, Stored: it.Quantity, Actual: actual}
		if it.Quantity == actual {
			c.NewQuantity = actual
			return nil
		}

		if opts.Renormalize {
			plan, ok := planRenormalization(batches, it.Quantity)
			if ok {
				if err := s.applyRenormalization(ctx, it.ID, plan, origin); err != nil {
					return err
				}
				c.Renormalized = true
			}
			// Target exceeds what the batches ever held; the stored
			// aggregate cannot be honest, so trust the batches.
		}

		newQty, err := s.repo.RecomputeItemQuantity(ctx, d.ItemID)
		if err != nil {
			return fmt.Errorf("recompute aggregate: %w", err)
		}
		c.NewQuantity = newQty

		// An item-level entry (nil batch) records the aggregate rewrite.
		// After a successful renormalization the aggregate is unchanged
		// and the per-batch entries already tell the story.
		if newQty != it.Quantity {
			stx := entity.NewStockTransaction(it.ID, nil, entity.KindAdjustment, newQty-it.Quantity, newQty, types.ZeroMoney(), origin)
			if err := s.repo.AppendTransactions(ctx, []entity.StockTransaction{stx}); err != nil {
				return fmt.Errorf("append transactions: %w", err)
			}
		}
		return nil
	})
	return c, err
}

func (s *Service) applyRenormalization(ctx context.Context, itemID id.ID, plan []batchReset, origin entity.Origin) error {
	txs := make([]entity.StockTransaction, 0, len(plan))
	for _, p := range plan {
		if p.newRemaining == p.batch.Remaining {
			continue
		}
		if err := s.repo.SetBatchRemaining(ctx, p.batch.ID, p.newRemaining); err != nil {
			return fmt.Errorf("reset batch %s: %w", p.batch.ID, err)
		}
		batchID := p.batch.ID
		delta := p.newRemaining - p.batch.Remaining
		txs = append(txs, entity.NewStockTransaction(itemID, &batchID, entity.KindAdjustment, delta, p.newRemaining, p.batch.UnitCost, origin))
	}
	if len(txs) == 0 {
		return nil
	}
	if err := s.repo.AppendTransactions(ctx, txs); err != nil {
		return fmt.Errorf("append transactions: %w", err)
	}
	return nil
}

type batchReset struct {
	batch        entity.StockBatch
	newRemaining types.Quantity
}

// planRenormalization scales batch remainders so they sum to target while
// keeping every batch within 0..purchased. Shares are proportional to the
// current remainders, rounded by largest remainder so the units add up
// exactly. Returns ok=false when target exceeds total purchased capacity.
func planRenormalization(batches []entity.StockBatch, target types.Quantity) ([]batchReset, bool) {
	if target.IsNegative() {
		return nil, false
	}

	var capacity types.Quantity
	for _, b := range batches {
		capacity += b.Purchased
	}
	if target > capacity {
		return nil, false
	}

	actual := totalRemaining(batches)
	plan := make([]batchReset, len(batches))
	for i, b := range batches {
		plan[i] = batchReset{batch: b}
	}

	if actual.IsZero() {
		// Nothing to scale proportionally; fill FIFO up to purchased.
		left := target
		for i := range plan {
			take := left.Min(plan[i].batch.Purchased)
			plan[i].newRemaining = take
			left -= take
		}
		return plan, left.IsZero()
	}

	// Proportional shares in scaled units, floored, with the shortfall
	// handed out one unit at a time to the largest fractional parts.
	type frac struct {
		idx  int
		part decimal.Decimal
	}
	fracs := make([]frac, len(plan))
	var assigned types.Quantity

	targetDec := decimal.NewFromInt(target.Int64Scaled())
	actualDec := decimal.NewFromInt(actual.Int64Scaled())
	for i := range plan {
		exact := decimal.NewFromInt(plan[i].batch.Remaining.Int64Scaled()).Mul(targetDec).Div(actualDec)
		floor := exact.Floor()
		plan[i].newRemaining = types.NewQuantityFromInt64Scaled(floor.IntPart())
		assigned += plan[i].newRemaining
		fracs[i] = frac{idx: i, part: exact.Sub(floor)}
	}

	sort.SliceStable(fracs, func(a, b int) bool {
		return fracs[a].part.GreaterThan(fracs[b].part)
	})
	for left := target - assigned; left > 0; left-- {
		plan[fracs[0].idx].newRemaining++
		fracs = append(fracs[1:], fracs[0])
	}

	// Cap at purchased and push any overflow into batches with headroom,
	// oldest first.
	var overflow types.Quantity
	for i := range plan {
		if plan[i].newRemaining > plan[i].batch.Purchased {
			overflow += plan[i].newRemaining - plan[i].batch.Purchased
			plan[i].newRemaining = plan[i].batch.Purchased
		}
	}
	for i := range plan {
		if overflow.IsZero() {
			break
		}
		headroom := plan[i].batch.Purchased - plan[i].newRemaining
		take := overflow.Min(headroom)
		plan[i].newRemaining += take
		overflow -= take
	}

	return plan, overflow.IsZero()
}
