package ledger

import (
	"context"
	"fmt"
	"time"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
	"agrostock/pkg/logger"
)

// Adjust applies a manual correction to an item's stock.
//
// Decreases clamp to what is actually available instead of failing: a
// stocktake that finds less than the books say must always be recordable.
// This is deliberately looser than Consume, which is all-or-nothing.
func (s *Service) Adjust(ctx context.Context, itemID id.ID, spec AdjustmentSpec, origin entity.Origin) (*AdjustmentResult, error) {
	mode, err := spec.mode()
	if err != nil {
		return nil, err
	}
	if spec.Reason != "" {
		origin.Note = joinNote(origin.Note, spec.Reason)
	}

	var res *AdjustmentResult
	err = s.mutate(ctx, "adjust", itemID, func(ctx context.Context) error {
		it, err := s.lockActiveItem(ctx, itemID)
		if err != nil {
			return err
		}

		switch mode {
		case AdjustIncrease:
			res, err = s.adjustIncrease(ctx, it, *spec.Delta, spec.UnitCost, origin)
		case AdjustDecrease:
			res, err = s.adjustDecrease(ctx, it, *spec.Delta, origin)
		case AdjustRecount:
			res, err = s.adjustRecount(ctx, it, *spec.NewTotal, spec.UnitCost, origin)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjusted",
		"item_id", itemID,
		"mode", res.Mode,
		"requested_delta", res.RequestedDelta,
		"applied_delta", res.AppliedDelta,
		"clamped", res.Clamped,
	)
	s.record(ctx, "adjust", itemID, res)

	return res, nil
}

// mode validates the spec and resolves which adjustment applies.
func (spec AdjustmentSpec) mode() (AdjustmentMode, error) {
	switch {
	case spec.Delta == nil && spec.NewTotal == nil:
		return "", apperror.NewValidation("either delta or newTotal must be set")
	case spec.Delta != nil && spec.NewTotal != nil:
		return "", apperror.NewValidation("delta and newTotal are mutually exclusive")
	case spec.NewTotal != nil:
		if spec.NewTotal.IsNegative() {
			return "", apperror.NewInvalidQuantity("newTotal must not be negative").
				WithDetail("newTotal", spec.NewTotal.String())
		}
		return AdjustRecount, nil
	case spec.Delta.IsZero():
		return "", apperror.NewInvalidQuantity("delta must not be zero")
	case spec.Delta.IsPositive():
		return AdjustIncrease, nil
	default:
		return AdjustDecrease, nil
	}
}

// adjustIncrease grows the most recent batch when costs match, otherwise
// opens a dedicated adjustment batch so batch unit costs stay immutable.
func (s *Service) adjustIncrease(ctx context.Context, it *itemView, delta types.Quantity, unitCost *types.Money, origin entity.Origin) (*AdjustmentResult, error) {
	latest, err := s.repo.GetLatestActiveBatch(ctx, it.ID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, fmt.Errorf("latest batch: %w", err)
	}

	var (
		target *entity.StockBatch
		txs    []entity.StockTransaction
	)

	switch {
	case latest != nil && (unitCost == nil || unitCost.Equal(latest.UnitCost)):
		if err := s.repo.GrowBatch(ctx, latest.ID, delta); err != nil {
			return nil, fmt.Errorf("grow batch: %w", err)
		}
		latest.Purchased += delta
		latest.Remaining += delta
		target = latest
	default:
		cost := types.ZeroMoney()
		if unitCost != nil {
			cost = *unitCost
		} else if latest != nil {
			cost = latest.UnitCost
		}
		b := entity.NewStockBatch(it.ID, adjustmentBatchNo(), delta, cost, time.Now().UTC(), nil)
		if err := s.repo.CreateBatch(ctx, &b); err != nil {
			return nil, fmt.Errorf("create adjustment batch: %w", err)
		}
		target = &b
	}

	batchID := target.ID
	txs = append(txs, entity.NewStockTransaction(it.ID, &batchID, entity.KindAdjustment, delta, target.Remaining, target.UnitCost, origin))
	if err := s.repo.AppendTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("append transactions: %w", err)
	}

	newQty, err := s.repo.RecomputeItemQuantity(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("recompute aggregate: %w", err)
	}

	return &AdjustmentResult{
		ItemID:         it.ID,
		Mode:           AdjustIncrease,
		RequestedDelta: delta,
		AppliedDelta:   delta,
		Batch:          target,
		NewQuantity:    newQty,
	}, nil
}

// adjustDecrease removes up to |delta| from the batches in FIFO order,
// clamping to whatever is available.
func (s *Service) adjustDecrease(ctx context.Context, it *itemView, delta types.Quantity, origin entity.Origin) (*AdjustmentResult, error) {
	want := delta.Abs()

	batches, err := s.repo.ListConsumableBatches(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	available := totalRemaining(batches)
	applied := want.Min(available)
	clamped := applied != want

	var takes []BatchTake
	if applied.IsPositive() {
		plan, _ := planConsumption(batches, applied)
		takes, err = s.applyTakes(ctx, it, plan, entity.KindAdjustment, origin)
		if err != nil {
			return nil, err
		}
	}

	newQty, err := s.repo.RecomputeItemQuantity(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("recompute aggregate: %w", err)
	}

	return &AdjustmentResult{
		ItemID:         it.ID,
		Mode:           AdjustDecrease,
		RequestedDelta: delta,
		AppliedDelta:   applied.Neg(),
		Clamped:        clamped,
		Takes:          takes,
		NewQuantity:    newQty,
	}, nil
}

// adjustRecount sets the aggregate to a counted total by computing the
// delta against current batch contents and dispatching to increase or
// decrease. A recount that matches the books is a no-op.
func (s *Service) adjustRecount(ctx context.Context, it *itemView, newTotal types.Quantity, unitCost *types.Money, origin entity.Origin) (*AdjustmentResult, error) {
	batches, err := s.repo.ListConsumableBatches(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	current := totalRemaining(batches)
	delta := newTotal - current

	if delta.IsZero() {
		newQty, err := s.repo.RecomputeItemQuantity(ctx, it.ID)
		if err != nil {
			return nil, fmt.Errorf("recompute aggregate: %w", err)
		}
		return &AdjustmentResult{
			ItemID:      it.ID,
			Mode:        AdjustRecount,
			NewQuantity: newQty,
		}, nil
	}

	var res *AdjustmentResult
	if delta.IsPositive() {
		res, err = s.adjustIncrease(ctx, it, delta, unitCost, origin)
	} else {
		res, err = s.adjustDecrease(ctx, it, delta, origin)
	}
	if err != nil {
		return nil, err
	}
	res.Mode = AdjustRecount
	return res, nil
}

func adjustmentBatchNo() string {
	return "ADJ-" + time.Now().UTC().Format("20060102-150405")
}

func joinNote(note, reason string) string {
	if note == "" {
		return reason
	}
	return note + "; " + reason
}
