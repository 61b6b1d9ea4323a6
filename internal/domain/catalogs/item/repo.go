package item

import (
	"context"

	"agrostock/internal/core/id"
)

// Repository defines persistence operations for the item catalog.
// The aggregate quantity column is intentionally absent from the write
// methods: only the batch ledger's projection step updates it.
type Repository interface {
	Create(ctx context.Context, item *Item) error

	// Update persists mutable catalog fields with an optimistic version check.
	Update(ctx context.Context, item *Item) error

	GetByID(ctx context.Context, itemID id.ID) (*Item, error)
	GetBySKU(ctx context.Context, sku string) (*Item, error)

	// List returns active items, optionally filtered by category.
	List(ctx context.Context, filter ListFilter) ([]*Item, error)

	// ListLowStock returns active items with quantity <= reorder_threshold.
	ListLowStock(ctx context.Context) ([]*Item, error)

	// Deactivate soft-deactivates an item; batch history stays intact.
	Deactivate(ctx context.Context, itemID id.ID) error
}

// ListFilter narrows catalog listings.
type ListFilter struct {
	Category        string
	IncludeInactive bool
	Limit           int
	Offset          int
}
