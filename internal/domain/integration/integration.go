// Package integration is the facade other backend modules (feeding,
// health, maintenance) use to draw on inventory. Callers address items by
// SKU and never see batches; every movement is stamped with the calling
// module's name so the transaction log tells who took what.
package integration

import (
	"context"
	"time"

	appctx "agrostock/internal/core/context"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
	"agrostock/internal/domain/catalogs/item"
	"agrostock/internal/domain/ledger"
)

// StockLedger is the slice of the ledger the facade uses.
type StockLedger interface {
	Consume(ctx context.Context, itemID id.ID, qty types.Quantity, origin entity.Origin) (*ledger.ConsumptionResult, error)
	ConsumeMany(ctx context.Context, reqs []ledger.Requirement, origin entity.Origin) *ledger.BatchOperationResult
	CurrentQuantity(ctx context.Context, itemID id.ID) (types.Quantity, error)
	ListExpiringBatches(ctx context.Context, within time.Duration) ([]entity.StockBatch, error)
}

// Catalog resolves SKUs and low-stock state.
type Catalog interface {
	GetBySKU(ctx context.Context, sku string) (*item.Item, error)
	ListLowStock(ctx context.Context) ([]*item.Item, error)
}

// Client is an inventory handle bound to one consuming module.
type Client struct {
	module  string
	ledger  StockLedger
	catalog Catalog
}

// NewClient creates a facade for the named module, e.g. "biofloc".
func NewClient(module string, l StockLedger, c Catalog) *Client {
	return &Client{module: module, ledger: l, catalog: c}
}

func (c *Client) origin(ctx context.Context, reference, note string) entity.Origin {
	return entity.Origin{
		Module:    c.module,
		Reference: reference,
		ActorID:   appctx.GetActorID(ctx),
		Note:      note,
	}
}

// Deduct consumes qty of the item identified by SKU. reference ties the
// movement to the caller's record (a feeding log id, a work order).
func (c *Client) Deduct(ctx context.Context, sku string, qty types.Quantity, reference, note string) (*ledger.ConsumptionResult, error) {
	it, err := c.catalog.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	return c.ledger.Consume(ctx, it.ID, qty, c.origin(ctx, reference, note))
}

// Requirement names one SKU and the quantity a multi-item deduction needs.
type Requirement struct {
	SKU      string
	Quantity types.Quantity
}

// DeductMany consumes several SKUs independently. Items that fail (unknown
// SKU, insufficient stock) are reported per item, not rolled up into one
// error; successfully deducted siblings stay deducted.
func (c *Client) DeductMany(ctx context.Context, reqs []Requirement, reference, note string) *ledger.BatchOperationResult {
	origin := c.origin(ctx, reference, note)
	result := &ledger.BatchOperationResult{
		Outcomes:  make([]ledger.ItemOutcome, len(reqs)),
		TotalCost: types.ZeroMoney(),
	}

	// Resolve SKUs up front; resolvedAt maps ledger outcomes back to
	// their request position so Outcomes stays in request order.
	resolved := make([]ledger.Requirement, 0, len(reqs))
	resolvedAt := make([]int, 0, len(reqs))
	for i, r := range reqs {
		result.Outcomes[i].SKU = r.SKU
		it, err := c.catalog.GetBySKU(ctx, r.SKU)
		if err != nil {
			result.Outcomes[i].Err = err
			result.Failed++
			continue
		}
		result.Outcomes[i].ItemID = it.ID
		resolved = append(resolved, ledger.Requirement{ItemID: it.ID, Quantity: r.Quantity})
		resolvedAt = append(resolvedAt, i)
	}

	consumed := c.ledger.ConsumeMany(ctx, resolved, origin)
	for j, o := range consumed.Outcomes {
		i := resolvedAt[j]
		result.Outcomes[i].Result = o.Result
		result.Outcomes[i].Err = o.Err
	}
	result.Successful = consumed.Successful
	result.Failed += consumed.Failed
	result.TotalCost = result.TotalCost.Add(consumed.TotalCost)
	return result
}

// StockLevel returns the current quantity for a SKU.
func (c *Client) StockLevel(ctx context.Context, sku string) (types.Quantity, error) {
	it, err := c.catalog.GetBySKU(ctx, sku)
	if err != nil {
		return 0, err
	}
	return c.ledger.CurrentQuantity(ctx, it.ID)
}

// IsAvailable reports whether at least qty of the SKU is in stock.
func (c *Client) IsAvailable(ctx context.Context, sku string, qty types.Quantity) (bool, error) {
	level, err := c.StockLevel(ctx, sku)
	if err != nil {
		return false, err
	}
	return level >= qty, nil
}

// Alert describes an item at or below its reorder threshold.
type Alert struct {
	ItemID    id.ID          `json:"itemId"`
	SKU       string         `json:"sku"`
	Name      string         `json:"name"`
	Quantity  types.Quantity `json:"quantity"`
	Threshold types.Quantity `json:"threshold"`
	Deficit   types.Quantity `json:"deficit"`
}

// LowStockAlerts lists items needing reorder, with the deficit against
// their minimum stock level.
func (c *Client) LowStockAlerts(ctx context.Context) ([]Alert, error) {
	items, err := c.catalog.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	alerts := make([]Alert, 0, len(items))
	for _, it := range items {
		alerts = append(alerts, Alert{
			ItemID:    it.ID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Threshold: it.ReorderThreshold,
			Deficit:   it.Deficit(),
		})
	}
	return alerts, nil
}

// ExpiringBatches lists active batches expiring within the window.
func (c *Client) ExpiringBatches(ctx context.Context, within time.Duration) ([]entity.StockBatch, error) {
	return c.ledger.ListExpiringBatches(ctx, within)
}
