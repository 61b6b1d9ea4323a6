package ledger

import (
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
)

// BatchTake reports one batch's contribution to a consumption, in the
// order batches were consumed.
type BatchTake struct {
	BatchID  id.ID          `json:"batchId"`
	BatchNo  string         `json:"batchNo"`
	Quantity types.Quantity `json:"quantity"`
	UnitCost types.Money    `json:"unitCost"`
	Cost     types.Money    `json:"cost"`
}

// ConsumptionResult describes a completed FIFO consumption.
type ConsumptionResult struct {
	ItemID    id.ID          `json:"itemId"`
	SKU       string         `json:"sku"`
	Requested types.Quantity `json:"requested"`

	// Takes lists consumed batches oldest-first.
	Takes []BatchTake `json:"takes"`

	TotalCost types.Money `json:"totalCost"`

	// AverageUnitCost is TotalCost / Requested, rounded to 4 places.
	AverageUnitCost types.Money `json:"averageUnitCost"`

	// NewQuantity is the item's aggregate after the consumption.
	NewQuantity types.Quantity `json:"newQuantity"`
}

// AdjustmentMode identifies which adjust sub-path ran.
type AdjustmentMode string

const (
	AdjustIncrease AdjustmentMode = "increase"
	AdjustDecrease AdjustmentMode = "decrease"
	AdjustRecount  AdjustmentMode = "recount"
)

// AdjustmentSpec describes a manual correction. Exactly one of Delta or
// NewTotal must be set: Delta applies a signed change, NewTotal recounts
// to an absolute aggregate.
type AdjustmentSpec struct {
	Delta    *types.Quantity
	NewTotal *types.Quantity

	// UnitCost prices increase adjustments; when omitted the most recent
	// batch's cost is reused.
	UnitCost *types.Money

	// Reason is recorded in the transaction note (stock recount, spoilage).
	Reason string
}

// AdjustmentResult describes a completed adjustment.
//
// Decreases clamp to available stock instead of failing; Clamped reports
// that the applied delta was smaller than requested. This asymmetry with
// Consume is deliberate: adjustments serve reconciliation tooling and must
// be able to drive stock to zero without erroring.
type AdjustmentResult struct {
	ItemID id.ID          `json:"itemId"`
	Mode   AdjustmentMode `json:"mode"`

	RequestedDelta types.Quantity `json:"requestedDelta"`
	AppliedDelta   types.Quantity `json:"appliedDelta"`
	Clamped        bool           `json:"clamped"`

	// Takes is populated for decreases (FIFO walk, kind=adjustment).
	Takes []BatchTake `json:"takes,omitempty"`

	// Batch is populated for increases that created a new adjustment batch.
	Batch *entity.StockBatch `json:"batch,omitempty"`

	NewQuantity types.Quantity `json:"newQuantity"`
}

// Requirement is one line of a multi-item consumption request.
type Requirement struct {
	ItemID   id.ID          `json:"itemId"`
	Quantity types.Quantity `json:"quantity"`
}

// ItemOutcome is the per-item result of ConsumeMany. SKU is set when the
// item was addressed by SKU, so failed entries stay identifiable even
// when resolution itself failed and ItemID is zero.
type ItemOutcome struct {
	ItemID id.ID              `json:"itemId"`
	SKU    string             `json:"sku,omitempty"`
	Result *ConsumptionResult `json:"result,omitempty"`
	Err    error              `json:"-"`
}

// BatchOperationResult aggregates ConsumeMany outcomes. Items succeed and
// fail independently; this is never all-or-nothing.
type BatchOperationResult struct {
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Outcomes   []ItemOutcome `json:"outcomes"`
	TotalCost  types.Money   `json:"totalCost"`
}

// Correction reports one item repaired by reconciliation.
type Correction struct {
	ItemID       id.ID          `json:"itemId"`
	SKU          string         `json:"sku"`
	Stored       types.Quantity `json:"stored"`
	Actual       types.Quantity `json:"actual"`
	NewQuantity  types.Quantity `json:"newQuantity"`
	Renormalized bool           `json:"renormalized"`
}

// ReconcileOptions tunes the reconciliation pass.
type ReconcileOptions struct {
	// Renormalize attributes the stored aggregate back into batch
	// remaining values proportionally, instead of trusting the batch sum.
	// Used after historical double-counts where the aggregate is known good.
	Renormalize bool
}
