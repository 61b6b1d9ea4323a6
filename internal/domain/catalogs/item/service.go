package item

import (
	"context"
	"fmt"

	"agrostock/internal/core/id"
	"agrostock/pkg/logger"
)

// Service provides business operations for the item catalog.
type Service struct {
	repo Repository
}

// NewService creates a new item catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new item.
func (s *Service) Create(ctx context.Context, it *Item) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, it); err != nil {
		return fmt.Errorf("create item: %w", err)
	}

	logger.Info(ctx, "item created", "id", it.ID, "sku", it.SKU)
	return nil
}

// Update persists catalog field changes (name, thresholds, category).
func (s *Service) Update(ctx context.Context, it *Item) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, it)
}

// GetByID retrieves an item by identifier.
func (s *Service) GetByID(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.repo.GetByID(ctx, itemID)
}

// GetBySKU retrieves an item by its stock-keeping code.
func (s *Service) GetBySKU(ctx context.Context, sku string) (*Item, error) {
	return s.repo.GetBySKU(ctx, sku)
}

// List returns items matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Item, error) {
	return s.repo.List(ctx, filter)
}

// ListLowStock returns active items at or below their reorder threshold.
func (s *Service) ListLowStock(ctx context.Context) ([]*Item, error) {
	return s.repo.ListLowStock(ctx)
}

// Deactivate soft-deactivates an item. Batches and transactions remain for audit.
func (s *Service) Deactivate(ctx context.Context, itemID id.ID) error {
	if err := s.repo.Deactivate(ctx, itemID); err != nil {
		return err
	}
	logger.Info(ctx, "item deactivated", "id", itemID)
	return nil
}
