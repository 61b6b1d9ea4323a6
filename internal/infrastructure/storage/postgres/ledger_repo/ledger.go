// Package ledger_repo provides the PostgreSQL implementation of the batch
// ledger repository.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
	"agrostock/internal/domain/catalogs/item"
	"agrostock/internal/domain/ledger"
	"agrostock/internal/infrastructure/storage/postgres"
)

const (
	itemsTable        = "items"
	batchesTable      = "stock_batches"
	transactionsTable = "stock_transactions"
)

var itemColumns = []string{
	"id", "version", "sku", "name", "category", "unit",
	"reorder_threshold", "min_stock_level", "quantity", "active",
	"created_at", "updated_at",
}

var batchColumns = []string{
	"id", "item_id", "batch_no", "purchased_qty", "remaining_qty",
	"unit_cost", "acquired_on", "expires_on", "active", "created_at",
}

var transactionColumns = []string{
	"id", "item_id", "batch_id", "kind", "delta", "balance_after",
	"unit_cost", "total_cost", "module", "reference", "actor_id", "note",
	"created_at",
}

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetItemForUpdate loads an item with a pessimistic row lock. Taking this
// lock first is what serializes all ledger writers for the item.
func (r *LedgerRepo) GetItemForUpdate(ctx context.Context, itemID id.ID) (*item.Item, error) {
	sql := `
		SELECT id, version, sku, name, category, unit,
			   reorder_threshold, min_stock_level, quantity, active,
			   created_at, updated_at
		FROM items
		WHERE id = $1
		FOR UPDATE
	`

	var it item.Item
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &it, sql, itemID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewItemNotFound(itemID)
		}
		return nil, fmt.Errorf("get item for update: %w", err)
	}

	return &it, nil
}

// GetItem loads an item without locking.
func (r *LedgerRepo) GetItem(ctx context.Context, itemID id.ID) (*item.Item, error) {
	q := r.builder.Select(itemColumns...).
		From(itemsTable).
		Where(squirrel.Eq{"id": itemID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var it item.Item
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &it, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewItemNotFound(itemID)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return &it, nil
}

// ListConsumableBatches returns the item's active non-empty batches in
// consumption order, row-locked. Lock order follows the sort order, which
// keeps concurrent consumers of the same item deadlock-free.
func (r *LedgerRepo) ListConsumableBatches(ctx context.Context, itemID id.ID) ([]entity.StockBatch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"item_id": itemID, "active": true}).
		Where(squirrel.Gt{"remaining_qty": 0}).
		OrderBy("acquired_on", "id").
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []entity.StockBatch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}

	return batches, nil
}

// GetLatestActiveBatch returns the most recently acquired active batch,
// row-locked.
func (r *LedgerRepo) GetLatestActiveBatch(ctx context.Context, itemID id.ID) (*entity.StockBatch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"item_id": itemID, "active": true}).
		OrderBy("acquired_on DESC", "id DESC").
		Limit(1).
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batch entity.StockBatch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &batch, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", itemID)
		}
		return nil, fmt.Errorf("get latest batch: %w", err)
	}

	return &batch, nil
}

// GetBatch loads one batch without locking. Mutations use it to resolve
// the owning item before taking any row lock.
func (r *LedgerRepo) GetBatch(ctx context.Context, batchID id.ID) (*entity.StockBatch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"id": batchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batch entity.StockBatch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &batch, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", batchID)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}

	return &batch, nil
}

// GetBatchForUpdate loads one batch with a row lock. Callers must hold the
// owning item's row lock already, keeping the item-then-batch lock order.
func (r *LedgerRepo) GetBatchForUpdate(ctx context.Context, batchID id.ID) (*entity.StockBatch, error) {
	sql := `
		SELECT id, item_id, batch_no, purchased_qty, remaining_qty,
			   unit_cost, acquired_on, expires_on, active, created_at
		FROM stock_batches
		WHERE id = $1
		FOR UPDATE
	`

	var batch entity.StockBatch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &batch, sql, batchID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("batch", batchID)
		}
		return nil, fmt.Errorf("get batch for update: %w", err)
	}

	return &batch, nil
}

// CreateBatch inserts a new batch.
func (r *LedgerRepo) CreateBatch(ctx context.Context, batch *entity.StockBatch) error {
	q := r.builder.Insert(batchesTable).
		Columns(batchColumns...).
		Values(
			batch.ID, batch.ItemID, batch.BatchNo,
			batch.Purchased, batch.Remaining,
			batch.UnitCost, batch.AcquiredOn, batch.ExpiresOn,
			batch.Active, batch.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	return nil
}

// SetBatchRemaining persists a new remaining quantity.
func (r *LedgerRepo) SetBatchRemaining(ctx context.Context, batchID id.ID, remaining types.Quantity) error {
	q := r.builder.Update(batchesTable).
		Set("remaining_qty", remaining).
		Where(squirrel.Eq{"id": batchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update batch remaining: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID)
	}

	return nil
}

// GrowBatch raises purchased and remaining together.
func (r *LedgerRepo) GrowBatch(ctx context.Context, batchID id.ID, delta types.Quantity) error {
	sql := `
		UPDATE stock_batches
		SET purchased_qty = purchased_qty + $2,
			remaining_qty = remaining_qty + $2
		WHERE id = $1
	`

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, batchID, delta)
	if err != nil {
		return fmt.Errorf("grow batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID)
	}

	return nil
}

// DeactivateBatch marks a batch inactive.
func (r *LedgerRepo) DeactivateBatch(ctx context.Context, batchID id.ID) error {
	q := r.builder.Update(batchesTable).
		Set("active", false).
		Where(squirrel.Eq{"id": batchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("deactivate batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", batchID)
	}

	return nil
}

// ListBatches returns all batches for an item in acquisition order.
func (r *LedgerRepo) ListBatches(ctx context.Context, itemID id.ID) ([]entity.StockBatch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("acquired_on", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []entity.StockBatch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}

	return batches, nil
}

// ListExpiringBatches returns active non-empty batches expiring on or
// before the given date, soonest first.
func (r *LedgerRepo) ListExpiringBatches(ctx context.Context, by time.Time) ([]entity.StockBatch, error) {
	q := r.builder.Select(batchColumns...).
		From(batchesTable).
		Where(squirrel.Eq{"active": true}).
		Where(squirrel.Gt{"remaining_qty": 0}).
		Where(squirrel.NotEq{"expires_on": nil}).
		Where(squirrel.LtOrEq{"expires_on": by}).
		OrderBy("expires_on", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []entity.StockBatch
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select expiring batches: %w", err)
	}

	return batches, nil
}

// AppendTransactions inserts transaction log entries.
func (r *LedgerRepo) AppendTransactions(ctx context.Context, txs []entity.StockTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	// Fast path: COPY when inside a transaction.
	if tx := r.txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(txs))
		for _, t := range txs {
			rows = append(rows, []any{
				t.ID, t.ItemID, t.BatchID, t.Kind, t.Delta, t.BalanceAfter,
				t.UnitCost, t.TotalCost, t.Module, t.Reference, t.ActorID, t.Note,
				t.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, transactionsTable, transactionColumns, rows); err != nil {
			return fmt.Errorf("copy transactions: %w", err)
		}
		return nil
	}

	// Fallback: non-transactional insert. Prefer appending within tx.
	q := r.builder.Insert(transactionsTable).Columns(transactionColumns...)
	for _, t := range txs {
		q = q.Values(
			t.ID, t.ItemID, t.BatchID, t.Kind, t.Delta, t.BalanceAfter,
			t.UnitCost, t.TotalCost, t.Module, t.Reference, t.ActorID, t.Note,
			t.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}

	return nil
}

// ListTransactions returns log entries matching the filter, newest first.
func (r *LedgerRepo) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]entity.StockTransaction, error) {
	sql, args, err := r.transactionsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var txs []entity.StockTransaction
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &txs, sql, args...); err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}

	return txs, nil
}

// transactionsQuery builds the filtered select for the transaction log.
func (r *LedgerRepo) transactionsQuery(filter ledger.TransactionFilter) squirrel.SelectBuilder {
	q := r.builder.Select(transactionColumns...).From(transactionsTable)

	if filter.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *filter.ItemID})
	}
	if filter.BatchID != nil {
		q = q.Where(squirrel.Eq{"batch_id": *filter.BatchID})
	}
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.Module != "" {
		q = q.Where(squirrel.Eq{"module": filter.Module})
	}
	if filter.Reference != "" {
		q = q.Where(squirrel.Eq{"reference": filter.Reference})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.To})
	}

	q = q.OrderBy("created_at DESC", "id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return q
}

// RecomputeItemQuantity rewrites the cached aggregate from the active
// batch set and returns the new value. Callers hold the item row lock.
func (r *LedgerRepo) RecomputeItemQuantity(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	sql := `
		UPDATE items
		SET quantity = COALESCE((
				SELECT SUM(remaining_qty)
				FROM stock_batches
				WHERE item_id = $1 AND active = true
			), 0),
			updated_at = now()
		WHERE id = $1
		RETURNING quantity
	`

	var scaled int64
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, itemID).Scan(&scaled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.NewItemNotFound(itemID)
		}
		return 0, fmt.Errorf("recompute quantity: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(scaled), nil
}

// ListDrifts finds items whose cached aggregate no longer matches the sum
// of their active batches.
func (r *LedgerRepo) ListDrifts(ctx context.Context) ([]ledger.Drift, error) {
	sql := `
		SELECT i.id AS item_id,
			   i.sku,
			   i.quantity AS stored,
			   COALESCE(SUM(b.remaining_qty) FILTER (WHERE b.active), 0) AS actual
		FROM items i
		LEFT JOIN stock_batches b ON b.item_id = i.id
		WHERE i.active = true
		GROUP BY i.id, i.sku, i.quantity
		HAVING i.quantity <> COALESCE(SUM(b.remaining_qty) FILTER (WHERE b.active), 0)
		ORDER BY i.sku
	`

	var drifts []ledger.Drift
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &drifts, sql); err != nil {
		return nil, fmt.Errorf("select drifts: %w", err)
	}

	return drifts, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*LedgerRepo)(nil)
