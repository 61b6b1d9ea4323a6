package receiving

import (
	"context"
	"time"

	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
)

// Repository persists purchase orders and their lines.
type Repository interface {
	Create(ctx context.Context, po *PurchaseOrder) error
	// Update rewrites the order header with an optimistic version check
	// and returns CONCURRENCY_CONFLICT when the stored version moved.
	Update(ctx context.Context, po *PurchaseOrder) error
	GetByID(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error)
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status   *OrderStatus
	Supplier string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// Ledger is the slice of the stock ledger receiving needs: one batch
// addition per received line, inside the caller's transaction.
type Ledger interface {
	Add(ctx context.Context, itemID id.ID, qty types.Quantity, unitCost types.Money, acquiredOn time.Time, expiresOn *time.Time, batchNo string, origin entity.Origin) (*entity.StockBatch, error)
}
