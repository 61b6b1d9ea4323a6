package dto

import (
	"time"

	"agrostock/internal/core/types"
	"agrostock/internal/domain/catalogs/item"
	"agrostock/internal/domain/integration"
)

// --- Request DTOs ---

// CreateItemRequest represents a request to create a catalog item.
type CreateItemRequest struct {
	SKU              string  `json:"sku" binding:"required"`
	Name             string  `json:"name" binding:"required"`
	Category         string  `json:"category,omitempty"`
	Unit             string  `json:"unit" binding:"required"`
	ReorderThreshold float64 `json:"reorderThreshold" binding:"omitempty,gte=0"`
	MinStockLevel    float64 `json:"minStockLevel" binding:"omitempty,gte=0"`
}

// ToEntity converts request to domain entity.
func (r *CreateItemRequest) ToEntity() *item.Item {
	it := item.NewItem(r.SKU, r.Name, r.Category, r.Unit)
	it.ReorderThreshold = types.NewQuantityFromFloat64(r.ReorderThreshold)
	it.MinStockLevel = types.NewQuantityFromFloat64(r.MinStockLevel)
	return it
}

// UpdateItemRequest represents a partial item update.
type UpdateItemRequest struct {
	Name             *string  `json:"name,omitempty"`
	Category         *string  `json:"category,omitempty"`
	Unit             *string  `json:"unit,omitempty"`
	ReorderThreshold *float64 `json:"reorderThreshold,omitempty"`
	MinStockLevel    *float64 `json:"minStockLevel,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateItemRequest) ApplyTo(it *item.Item) {
	if r.Name != nil {
		it.Name = *r.Name
	}
	if r.Category != nil {
		it.Category = *r.Category
	}
	if r.Unit != nil {
		it.Unit = *r.Unit
	}
	if r.ReorderThreshold != nil {
		it.ReorderThreshold = types.NewQuantityFromFloat64(*r.ReorderThreshold)
	}
	if r.MinStockLevel != nil {
		it.MinStockLevel = types.NewQuantityFromFloat64(*r.MinStockLevel)
	}
}

// --- Response DTOs ---

// ItemResponse represents a catalog item in API responses.
type ItemResponse struct {
	ID               string    `json:"id"`
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	Category         string    `json:"category,omitempty"`
	Unit             string    `json:"unit"`
	ReorderThreshold float64   `json:"reorderThreshold"`
	MinStockLevel    float64   `json:"minStockLevel"`
	Quantity         float64   `json:"quantity"`
	LowStock         bool      `json:"lowStock"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// FromItem converts entity to response DTO.
func FromItem(it *item.Item) ItemResponse {
	return ItemResponse{
		ID:               it.ID.String(),
		SKU:              it.SKU,
		Name:             it.Name,
		Category:         it.Category,
		Unit:             it.Unit,
		ReorderThreshold: it.ReorderThreshold.Float64(),
		MinStockLevel:    it.MinStockLevel.Float64(),
		Quantity:         it.Quantity.Float64(),
		LowStock:         it.IsLowStock(),
		Active:           it.Active,
		CreatedAt:        it.CreatedAt,
		UpdatedAt:        it.UpdatedAt,
	}
}

// AlertResponse represents a low-stock alert.
type AlertResponse struct {
	ItemID    string  `json:"itemId"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Threshold float64 `json:"threshold"`
	Deficit   float64 `json:"deficit"`
}

// FromAlert converts a low-stock alert to response DTO.
func FromAlert(a integration.Alert) AlertResponse {
	return AlertResponse{
		ItemID:    a.ItemID.String(),
		SKU:       a.SKU,
		Name:      a.Name,
		Quantity:  a.Quantity.Float64(),
		Threshold: a.Threshold.Float64(),
		Deficit:   a.Deficit.Float64(),
	}
}
