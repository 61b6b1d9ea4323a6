package ledger

import (
	"context"
	"fmt"
	"time"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/tx"
	"agrostock/internal/core/types"
	"agrostock/pkg/logger"
)

// maxConflictRetries bounds internal retries on write-write races before
// the conflict surfaces to the caller.
const maxConflictRetries = 3

// Service is the stock ledger facade: FIFO consumption, batch additions,
// manual adjustments, availability reads and reconciliation. Every mutation
// runs as one atomic unit: batch updates, transaction log appends and the
// aggregate projection rewrite commit or roll back together.
type Service struct {
	repo    Repository
	txm     tx.Manager
	journal Journal // optional, best-effort
}

// NewService creates a new ledger service. journal may be nil.
func NewService(repo Repository, txm tx.Manager, journal Journal) *Service {
	return &Service{
		repo:    repo,
		txm:     txm,
		journal: journal,
	}
}

// mutate runs fn in a transaction, retrying on concurrency conflicts.
// When the context already carries a transaction (a document posting is
// enlisting the ledger), retries belong to the enclosing unit of work.
func (s *Service) mutate(ctx context.Context, op string, itemID id.ID, fn func(ctx context.Context) error) error {
	if s.txm.InTransaction(ctx) {
		return s.txm.RunInTransaction(ctx, fn)
	}

	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = s.txm.RunInTransaction(ctx, fn)
		if err == nil || !apperror.IsConcurrencyConflict(err) {
			return err
		}
		logger.Warn(ctx, "ledger conflict, retrying",
			"op", op,
			"item_id", itemID,
			"attempt", attempt,
		)
	}
	return err
}

// lockActiveItem loads the item under a row lock and rejects inactive items.
func (s *Service) lockActiveItem(ctx context.Context, itemID id.ID) (*itemView, error) {
	it, err := s.repo.GetItemForUpdate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !it.Active {
		return nil, apperror.NewItemNotFound(it.SKU)
	}
	return &itemView{ID: it.ID, SKU: it.SKU, Quantity: it.Quantity}, nil
}

// itemView is the slice of item state the ledger needs under lock.
type itemView struct {
	ID       id.ID
	SKU      string
	Quantity types.Quantity
}

// Consume deducts quantity from an item's batches in FIFO order.
// Either the full quantity is satisfied or the operation fails with
// INSUFFICIENT_STOCK and no mutation is visible.
func (s *Service) Consume(ctx context.Context, itemID id.ID, qty types.Quantity, origin entity.Origin) (*ConsumptionResult, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewInvalidQuantity("consumption quantity must be positive").
			WithDetail("quantity", qty.String())
	}

	var res *ConsumptionResult
	err := s.mutate(ctx, "consume", itemID, func(ctx context.Context) error {
		it, err := s.lockActiveItem(ctx, itemID)
		if err != nil {
			return err
		}

		batches, err := s.repo.ListConsumableBatches(ctx, itemID)
		if err != nil {
			return fmt.Errorf("list batches: %w", err)
		}

		plan, available := planConsumption(batches, qty)
		if plan == nil {
			return apperror.NewInsufficientStock(it.SKU, qty, available)
		}

		applied, err := s.applyTakes(ctx, it, plan, entity.KindConsumption, origin)
		if err != nil {
			return err
		}

		newQty, err := s.repo.RecomputeItemQuantity(ctx, itemID)
		if err != nil {
			return fmt.Errorf("recompute aggregate: %w", err)
		}

		res = buildConsumptionResult(it, qty, applied, newQty)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock consumed",
		"item_id", itemID,
		"sku", res.SKU,
		"quantity", qty,
		"batches", len(res.Takes),
		"total_cost", res.TotalCost,
		"module", origin.Module,
	)
	s.record(ctx, "consume", itemID, res)

	return res, nil
}

// applyTakes decrements each planned batch and appends one transaction per
// touched batch, all inside the current transaction.
func (s *Service) applyTakes(ctx context.Context, it *itemView, plan []batchTake, kind entity.TransactionKind, origin entity.Origin) ([]BatchTake, error) {
	takes := make([]BatchTake, 0, len(plan))
	txs := make([]entity.StockTransaction, 0, len(plan))

	for _, p := range plan {
		newRemaining := p.batch.Remaining - p.qty
		if newRemaining.IsNegative() {
			return nil, apperror.NewConcurrencyConflict("batch", p.batch.ID)
		}
		if err := s.repo.SetBatchRemaining(ctx, p.batch.ID, newRemaining); err != nil {
			return nil, fmt.Errorf("update batch %s: %w", p.batch.ID, err)
		}

		batchID := p.batch.ID
		stx := entity.NewStockTransaction(it.ID, &batchID, kind, p.qty.Neg(), newRemaining, p.batch.UnitCost, origin)
		txs = append(txs, stx)

		takes = append(takes, BatchTake{
			BatchID:  p.batch.ID,
			BatchNo:  p.batch.BatchNo,
			Quantity: p.qty,
			UnitCost: p.batch.UnitCost,
			Cost:     stx.TotalCost,
		})
	}

	if err := s.repo.AppendTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("append transactions: %w", err)
	}

	return takes, nil
}

func buildConsumptionResult(it *itemView, requested types.Quantity, takes []BatchTake, newQty types.Quantity) *ConsumptionResult {
	total := types.ZeroMoney()
	for _, t := range takes {
		total = total.Add(t.Cost)
	}

	avg := types.ZeroMoney()
	if requested.IsPositive() {
		avg = total.DivRound(requested.Decimal(), 4)
	}

	return &ConsumptionResult{
		ItemID:          it.ID,
		SKU:             it.SKU,
		Requested:       requested,
		Takes:           takes,
		TotalCost:       total,
		AverageUnitCost: avg,
		NewQuantity:     newQty,
	}
}

// Add creates a new batch for an item (purchase receipt, manual addition).
func (s *Service) Add(ctx context.Context, itemID id.ID, qty types.Quantity, unitCost types.Money, acquiredOn time.Time, expiresOn *time.Time, batchNo string, origin entity.Origin) (*entity.StockBatch, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewInvalidQuantity("batch quantity must be positive").
			WithDetail("quantity", qty.String())
	}
	if unitCost.IsNegative() {
		return nil, apperror.NewInvalidQuantity("unit cost must not be negative").
			WithDetail("unitCost", unitCost.String())
	}
	if acquiredOn.IsZero() {
		acquiredOn = time.Now().UTC()
	}

	var batch *entity.StockBatch
	err := s.mutate(ctx, "add", itemID, func(ctx context.Context) error {
		it, err := s.lockActiveItem(ctx, itemID)
		if err != nil {
			return err
		}

		b := entity.NewStockBatch(itemID, batchNo, qty, unitCost, acquiredOn, expiresOn)
		if err := s.repo.CreateBatch(ctx, &b); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}

		batchID := b.ID
		stx := entity.NewStockTransaction(it.ID, &batchID, entity.KindAddition, qty, b.Remaining, unitCost, origin)
		if err := s.repo.AppendTransactions(ctx, []entity.StockTransaction{stx}); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		if _, err := s.repo.RecomputeItemQuantity(ctx, itemID); err != nil {
			return fmt.Errorf("recompute aggregate: %w", err)
		}

		batch = &b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock added",
		"item_id", itemID,
		"batch_id", batch.ID,
		"batch_no", batch.BatchNo,
		"quantity", qty,
		"unit_cost", unitCost,
		"module", origin.Module,
	)
	s.record(ctx, "add", itemID, batch)

	return batch, nil
}

// ExpireBatch writes off whatever remains of a batch and deactivates it.
func (s *Service) ExpireBatch(ctx context.Context, batchID id.ID, origin entity.Origin) (*entity.StockBatch, error) {
	var expired *entity.StockBatch
	err := s.mutate(ctx, "expire", batchID, func(ctx context.Context) error {
		// Resolve the owning item without locking, then lock item row
		// first and batch row second, same order as every other mutation.
		ref, err := s.repo.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if _, err := s.lockActiveItem(ctx, ref.ItemID); err != nil {
			return err
		}

		b, err := s.repo.GetBatchForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if !b.Active {
			return apperror.NewConflict("batch is already inactive").
				WithDetail("batchId", b.ID)
		}

		if b.Remaining.IsPositive() {
			if err := s.repo.SetBatchRemaining(ctx, b.ID, 0); err != nil {
				return fmt.Errorf("zero batch: %w", err)
			}
			stx := entity.NewStockTransaction(b.ItemID, &b.ID, entity.KindExpiration, b.Remaining.Neg(), 0, b.UnitCost, origin)
			if err := s.repo.AppendTransactions(ctx, []entity.StockTransaction{stx}); err != nil {
				return fmt.Errorf("append transaction: %w", err)
			}
		}

		if err := s.repo.DeactivateBatch(ctx, b.ID); err != nil {
			return fmt.Errorf("deactivate batch: %w", err)
		}

		if _, err := s.repo.RecomputeItemQuantity(ctx, b.ItemID); err != nil {
			return fmt.Errorf("recompute aggregate: %w", err)
		}

		b.Remaining = 0
		b.Active = false
		expired = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "batch expired", "batch_id", batchID, "item_id", expired.ItemID)
	s.record(ctx, "expire", expired.ItemID, expired)

	return expired, nil
}

// CurrentQuantity returns the item's cached aggregate quantity.
// Best-effort fresh: callers needing read-then-consume atomicity must call
// Consume directly and handle INSUFFICIENT_STOCK.
func (s *Service) CurrentQuantity(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return it.Quantity, nil
}

// IsAvailable reports whether at least qty is in stock. Same freshness
// caveat as CurrentQuantity.
func (s *Service) IsAvailable(ctx context.Context, itemID id.ID, qty types.Quantity) (bool, error) {
	current, err := s.CurrentQuantity(ctx, itemID)
	if err != nil {
		return false, err
	}
	return current >= qty, nil
}

// ConsumeMany deducts several items, each in its own atomic unit.
// One item's failure never rolls back its siblings.
func (s *Service) ConsumeMany(ctx context.Context, reqs []Requirement, origin entity.Origin) *BatchOperationResult {
	result := &BatchOperationResult{
		Outcomes:  make([]ItemOutcome, 0, len(reqs)),
		TotalCost: types.ZeroMoney(),
	}

	for _, req := range reqs {
		outcome := ItemOutcome{ItemID: req.ItemID}
		res, err := s.Consume(ctx, req.ItemID, req.Quantity, origin)
		if err != nil {
			outcome.Err = err
			result.Failed++
		} else {
			outcome.Result = res
			result.Successful++
			result.TotalCost = result.TotalCost.Add(res.TotalCost)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	logger.Info(ctx, "multi-item consumption finished",
		"requested", len(reqs),
		"successful", result.Successful,
		"failed", result.Failed,
		"module", origin.Module,
	)

	return result
}

// Transactions returns transaction log entries matching the filter.
func (s *Service) Transactions(ctx context.Context, filter TransactionFilter) ([]entity.StockTransaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// Batches returns all batches for an item, for inspection.
func (s *Service) Batches(ctx context.Context, itemID id.ID) ([]entity.StockBatch, error) {
	return s.repo.ListBatches(ctx, itemID)
}

// ListExpiringBatches returns active batches expiring within the window.
func (s *Service) ListExpiringBatches(ctx context.Context, within time.Duration) ([]entity.StockBatch, error) {
	return s.repo.ListExpiringBatches(ctx, time.Now().UTC().Add(within))
}

// record sends an operation to the journal, if configured. Journal
// failures are logged and dropped; they never fail the operation.
func (s *Service) record(ctx context.Context, op string, itemID id.ID, payload any) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, op, itemID, payload); err != nil {
		logger.Warn(ctx, "journal write failed", "op", op, "item_id", itemID, "error", err)
	}
}
