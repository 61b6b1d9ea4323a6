// Package item provides the stock item catalog.
// An item is a trackable stock-keeping unit; its aggregate quantity is a
// cached projection maintained exclusively by the batch ledger.
package item

import (
	"context"
	"time"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/types"
)

// Item represents a stock-keeping unit tracked by the ledger.
type Item struct {
	entity.BaseEntity

	// SKU is the unique stock-keeping code
	SKU string `db:"sku" json:"sku"`

	Name     string `db:"name" json:"name"`
	Category string `db:"category" json:"category"`

	// Unit is the unit of measure (kg, L, pcs)
	Unit string `db:"unit" json:"unit"`

	// ReorderThreshold triggers low-stock alerts when quantity falls to or below it
	ReorderThreshold types.Quantity `db:"reorder_threshold" json:"reorderThreshold"`

	// MinStockLevel is the hard floor the farm wants to keep on hand
	MinStockLevel types.Quantity `db:"min_stock_level" json:"minStockLevel"`

	// Quantity is the cached aggregate: sum of remaining over active batches.
	// Written only by the ledger's projection step, never directly.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// Active items can be transacted; deactivated items are kept for audit
	Active bool `db:"active" json:"active"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewItem creates an active item with zero stock.
func NewItem(sku, name, category, unit string) *Item {
	now := time.Now().UTC()
	return &Item{
		BaseEntity: entity.NewBaseEntity(),
		SKU:        sku,
		Name:       name,
		Category:   category,
		Unit:       unit,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate implements entity.Validatable.
func (i *Item) Validate(ctx context.Context) error {
	if i.SKU == "" {
		return apperror.NewValidation("sku is required").
			WithDetail("field", "sku")
	}
	if i.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if i.Unit == "" {
		return apperror.NewValidation("unit is required").
			WithDetail("field", "unit")
	}
	if i.ReorderThreshold.IsNegative() || i.MinStockLevel.IsNegative() {
		return apperror.NewValidation("stock thresholds must not be negative")
	}
	return nil
}

// IsLowStock reports whether the item is at or below its reorder threshold.
func (i *Item) IsLowStock() bool {
	return i.Quantity <= i.ReorderThreshold
}

// Deficit returns how far below the reorder threshold the item is (zero if not low).
func (i *Item) Deficit() types.Quantity {
	if !i.IsLowStock() {
		return 0
	}
	return i.ReorderThreshold - i.Quantity
}
