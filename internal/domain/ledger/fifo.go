package ledger

import (
	"agrostock/internal/core/entity"
	"agrostock/internal/core/types"
)

// batchTake is one slice of a planned FIFO consumption.
type batchTake struct {
	batch entity.StockBatch
	qty   types.Quantity
}

// planConsumption splits a requested quantity across batches in the order
// given (callers pass FIFO order: acquired_on ASC, id ASC), greedily taking
// min(batch remaining, still needed) from each.
//
// Returns the plan and the total available. When available < requested the
// plan is nil; the caller decides whether that is an error (consume) or a
// clamp (adjust decrease).
func planConsumption(batches []entity.StockBatch, requested types.Quantity) ([]batchTake, types.Quantity) {
	var available types.Quantity
	for _, b := range batches {
		available += b.Remaining
	}
	if available < requested {
		return nil, available
	}

	plan := make([]batchTake, 0, len(batches))
	needed := requested
	for _, b := range batches {
		if needed <= 0 {
			break
		}
		take := b.Remaining.Min(needed)
		if take <= 0 {
			continue
		}
		plan = append(plan, batchTake{batch: b, qty: take})
		needed -= take
	}

	return plan, available
}

// totalRemaining sums remaining quantities over a batch slice.
func totalRemaining(batches []entity.StockBatch) types.Quantity {
	var sum types.Quantity
	for _, b := range batches {
		sum += b.Remaining
	}
	return sum
}
