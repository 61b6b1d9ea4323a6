// Package ledger implements the FIFO batch ledger: the only writer of
// batch remaining quantities and of the item aggregate projection.
package ledger

import (
	"context"
	"time"

	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
	"agrostock/internal/domain/catalogs/item"
)

// Repository defines storage operations for the batch ledger.
// All mutating methods are expected to run inside a transaction started
// by the service; locking methods serialize concurrent writers per item.
type Repository interface {
	// Item access

	// GetItemForUpdate loads an item and takes a row lock on it.
	// Locking the item row first serializes all ledger mutations for
	// that item, so no two writers ever see the same batch snapshot.
	GetItemForUpdate(ctx context.Context, itemID id.ID) (*item.Item, error)

	// GetItem loads an item without locking (read paths).
	GetItem(ctx context.Context, itemID id.ID) (*item.Item, error)

	// Batch access

	// ListConsumableBatches returns active batches with remaining > 0 in
	// FIFO order (acquired_on ASC, id ASC), row-locked.
	ListConsumableBatches(ctx context.Context, itemID id.ID) ([]entity.StockBatch, error)

	// GetLatestActiveBatch returns the most recently acquired active batch,
	// row-locked, or a NOT_FOUND error if the item has none.
	GetLatestActiveBatch(ctx context.Context, itemID id.ID) (*entity.StockBatch, error)

	// GetBatch loads one batch without locking, used to resolve the
	// owning item before any row lock is taken.
	GetBatch(ctx context.Context, batchID id.ID) (*entity.StockBatch, error)

	// GetBatchForUpdate loads one batch and takes a row lock on it.
	// Callers must already hold the owning item's row lock so the
	// item-then-batch lock order holds everywhere.
	GetBatchForUpdate(ctx context.Context, batchID id.ID) (*entity.StockBatch, error)

	CreateBatch(ctx context.Context, batch *entity.StockBatch) error

	// SetBatchRemaining persists a new remaining quantity for a batch.
	SetBatchRemaining(ctx context.Context, batchID id.ID, remaining types.Quantity) error

	// GrowBatch increases both purchased and remaining by delta, keeping
	// the remaining <= purchased invariant intact.
	GrowBatch(ctx context.Context, batchID id.ID, delta types.Quantity) error

	DeactivateBatch(ctx context.Context, batchID id.ID) error

	// ListBatches returns all batches for an item, newest acquisition last.
	ListBatches(ctx context.Context, itemID id.ID) ([]entity.StockBatch, error)

	// ListExpiringBatches returns active non-empty batches expiring on or
	// before the given date, soonest first.
	ListExpiringBatches(ctx context.Context, by time.Time) ([]entity.StockBatch, error)

	// Transaction log (append-only)

	AppendTransactions(ctx context.Context, txs []entity.StockTransaction) error

	ListTransactions(ctx context.Context, filter TransactionFilter) ([]entity.StockTransaction, error)

	// Aggregate projection

	// RecomputeItemQuantity rewrites the item's cached aggregate from the
	// sum of remaining over its active batches and returns the new value.
	// This is the single writer path for items.quantity.
	RecomputeItemQuantity(ctx context.Context, itemID id.ID) (types.Quantity, error)

	// Reconciliation support

	// ListDrifts finds items whose stored aggregate differs from the sum
	// of their active batches' remaining quantities.
	ListDrifts(ctx context.Context) ([]Drift, error)
}

// TransactionFilter narrows transaction log queries. Module and Reference
// are exact-match filters on the stored origin metadata.
type TransactionFilter struct {
	ItemID    *id.ID
	BatchID   *id.ID
	Kind      *entity.TransactionKind
	Module    string
	Reference string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// Drift is an item whose cached aggregate disagrees with its batch set.
type Drift struct {
	ItemID id.ID          `db:"item_id"`
	SKU    string         `db:"sku"`
	Stored types.Quantity `db:"stored"`
	Actual types.Quantity `db:"actual"`
}

// Journal records ledger operations out-of-band for diagnostics.
// Implementations must be best-effort: the ledger never fails a business
// operation because its journal write failed.
type Journal interface {
	Record(ctx context.Context, op string, itemID id.ID, payload any) error
}
