package dto

import (
	"time"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
	"agrostock/internal/domain/ledger"
)

// --- Request DTOs ---

// AddStockRequest creates a new batch for an item.
type AddStockRequest struct {
	Quantity   float64    `json:"quantity" binding:"required,gt=0"`
	UnitCost   string     `json:"unitCost" binding:"required"`
	BatchNo    string     `json:"batchNo,omitempty"`
	AcquiredOn *time.Time `json:"acquiredOn,omitempty"`
	ExpiresOn  *time.Time `json:"expiresOn,omitempty"`
	Reference  string     `json:"reference,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// ConsumeRequest deducts stock through the FIFO path.
type ConsumeRequest struct {
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
	Reference string  `json:"reference,omitempty"`
	Note      string  `json:"note,omitempty"`
}

// AdjustRequest applies a manual correction. Exactly one of delta or
// newTotal must be set.
type AdjustRequest struct {
	Delta     *float64 `json:"delta,omitempty"`
	NewTotal  *float64 `json:"newTotal,omitempty"`
	UnitCost  *string  `json:"unitCost,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Reference string   `json:"reference,omitempty"`
}

// ToSpec converts the request to an adjustment spec.
func (r *AdjustRequest) ToSpec() (ledger.AdjustmentSpec, error) {
	spec := ledger.AdjustmentSpec{Reason: r.Reason}
	if r.Delta != nil {
		d := types.NewQuantityFromFloat64(*r.Delta)
		spec.Delta = &d
	}
	if r.NewTotal != nil {
		t := types.NewQuantityFromFloat64(*r.NewTotal)
		spec.NewTotal = &t
	}
	if r.UnitCost != nil {
		cost, err := types.NewMoneyFromString(*r.UnitCost)
		if err != nil {
			return spec, apperror.NewValidation("invalid unit cost").WithDetail("unitCost", *r.UnitCost)
		}
		spec.UnitCost = &cost
	}
	return spec, nil
}

// ConsumeManyItemRequest is one position in a multi-item deduction.
type ConsumeManyItemRequest struct {
	ItemID   string  `json:"itemId" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}

// ConsumeManyRequest deducts several items independently.
type ConsumeManyRequest struct {
	Items     []ConsumeManyItemRequest `json:"items" binding:"required,min=1,dive"`
	Reference string                   `json:"reference,omitempty"`
	Note      string                   `json:"note,omitempty"`
}

// ReconcileRequest triggers a drift repair sweep.
type ReconcileRequest struct {
	Renormalize bool `json:"renormalize,omitempty"`
}

// --- Response DTOs ---

// BatchResponse represents a stock batch in API responses.
type BatchResponse struct {
	ID           string     `json:"id"`
	ItemID       string     `json:"itemId"`
	BatchNo      string     `json:"batchNo,omitempty"`
	PurchasedQty float64    `json:"purchasedQty"`
	RemainingQty float64    `json:"remainingQty"`
	UnitCost     string     `json:"unitCost"`
	AcquiredOn   time.Time  `json:"acquiredOn"`
	ExpiresOn    *time.Time `json:"expiresOn,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// FromBatch converts entity to response DTO.
func FromBatch(b entity.StockBatch) BatchResponse {
	return BatchResponse{
		ID:           b.ID.String(),
		ItemID:       b.ItemID.String(),
		BatchNo:      b.BatchNo,
		PurchasedQty: b.Purchased.Float64(),
		RemainingQty: b.Remaining.Float64(),
		UnitCost:     b.UnitCost.String(),
		AcquiredOn:   b.AcquiredOn,
		ExpiresOn:    b.ExpiresOn,
		Active:       b.Active,
		CreatedAt:    b.CreatedAt,
	}
}

// FromBatches converts a batch slice.
func FromBatches(batches []entity.StockBatch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, FromBatch(b))
	}
	return out
}

// TransactionResponse represents a transaction log entry.
type TransactionResponse struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"itemId"`
	BatchID      string    `json:"batchId,omitempty"`
	Kind         string    `json:"kind"`
	Delta        float64   `json:"delta"`
	BalanceAfter float64   `json:"balanceAfter"`
	UnitCost     string    `json:"unitCost"`
	TotalCost    string    `json:"totalCost"`
	Module       string    `json:"module,omitempty"`
	Reference    string    `json:"reference,omitempty"`
	ActorID      string    `json:"actorId,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FromTransaction converts entity to response DTO.
func FromTransaction(t entity.StockTransaction) TransactionResponse {
	resp := TransactionResponse{
		ID:           t.ID.String(),
		ItemID:       t.ItemID.String(),
		Kind:         string(t.Kind),
		Delta:        t.Delta.Float64(),
		BalanceAfter: t.BalanceAfter.Float64(),
		UnitCost:     t.UnitCost.String(),
		TotalCost:    t.TotalCost.String(),
		Module:       t.Module,
		Reference:    t.Reference,
		ActorID:      t.ActorID,
		Note:         t.Note,
		CreatedAt:    t.CreatedAt,
	}
	if t.BatchID != nil {
		resp.BatchID = t.BatchID.String()
	}
	return resp
}

// BatchTakeResponse is one batch's contribution to a deduction.
type BatchTakeResponse struct {
	BatchID  string  `json:"batchId"`
	BatchNo  string  `json:"batchNo,omitempty"`
	Quantity float64 `json:"quantity"`
	UnitCost string  `json:"unitCost"`
	Cost     string  `json:"cost"`
}

// ConsumptionResponse reports a completed FIFO deduction.
type ConsumptionResponse struct {
	ItemID          string              `json:"itemId"`
	SKU             string              `json:"sku"`
	Requested       float64             `json:"requested"`
	Takes           []BatchTakeResponse `json:"takes"`
	TotalCost       string              `json:"totalCost"`
	AverageUnitCost string              `json:"averageUnitCost"`
	NewQuantity     float64             `json:"newQuantity"`
}

// FromConsumption converts a consumption result to response DTO.
func FromConsumption(res *ledger.ConsumptionResult) ConsumptionResponse {
	takes := make([]BatchTakeResponse, 0, len(res.Takes))
	for _, t := range res.Takes {
		takes = append(takes, BatchTakeResponse{
			BatchID:  t.BatchID.String(),
			BatchNo:  t.BatchNo,
			Quantity: t.Quantity.Float64(),
			UnitCost: t.UnitCost.String(),
			Cost:     t.Cost.String(),
		})
	}
	return ConsumptionResponse{
		ItemID:          res.ItemID.String(),
		SKU:             res.SKU,
		Requested:       res.Requested.Float64(),
		Takes:           takes,
		TotalCost:       res.TotalCost.String(),
		AverageUnitCost: res.AverageUnitCost.String(),
		NewQuantity:     res.NewQuantity.Float64(),
	}
}

// AdjustmentResponse reports a completed manual adjustment.
type AdjustmentResponse struct {
	ItemID         string         `json:"itemId"`
	Mode           string         `json:"mode"`
	RequestedDelta float64        `json:"requestedDelta"`
	AppliedDelta   float64        `json:"appliedDelta"`
	Clamped        bool           `json:"clamped"`
	Batch          *BatchResponse `json:"batch,omitempty"`
	NewQuantity    float64        `json:"newQuantity"`
}

// FromAdjustment converts an adjustment result to response DTO.
func FromAdjustment(res *ledger.AdjustmentResult) AdjustmentResponse {
	resp := AdjustmentResponse{
		ItemID:         res.ItemID.String(),
		Mode:           string(res.Mode),
		RequestedDelta: res.RequestedDelta.Float64(),
		AppliedDelta:   res.AppliedDelta.Float64(),
		Clamped:        res.Clamped,
		NewQuantity:    res.NewQuantity.Float64(),
	}
	if res.Batch != nil {
		b := FromBatch(*res.Batch)
		resp.Batch = &b
	}
	return resp
}

// OutcomeResponse is one item's result in a multi-item deduction.
type OutcomeResponse struct {
	ItemID  string               `json:"itemId,omitempty"`
	SKU     string               `json:"sku,omitempty"`
	Result  *ConsumptionResponse `json:"result,omitempty"`
	Error   string               `json:"error,omitempty"`
	Code    string               `json:"code,omitempty"`
	Details map[string]any       `json:"details,omitempty"`
}

// ConsumeManyResponse reports a multi-item deduction.
type ConsumeManyResponse struct {
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	TotalCost  string            `json:"totalCost"`
	Outcomes   []OutcomeResponse `json:"outcomes"`
}

// FromBatchOperation converts a multi-item result to response DTO.
func FromBatchOperation(res *ledger.BatchOperationResult) ConsumeManyResponse {
	outcomes := make([]OutcomeResponse, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		out := OutcomeResponse{SKU: o.SKU}
		if !id.IsNil(o.ItemID) {
			out.ItemID = o.ItemID.String()
		}
		if o.Result != nil {
			r := FromConsumption(o.Result)
			out.Result = &r
		}
		if o.Err != nil {
			out.Error = o.Err.Error()
			if appErr, ok := apperror.AsAppError(o.Err); ok {
				out.Code = appErr.Code
				out.Error = appErr.Message
				out.Details = appErr.Details
			}
		}
		outcomes = append(outcomes, out)
	}
	return ConsumeManyResponse{
		Successful: res.Successful,
		Failed:     res.Failed,
		TotalCost:  res.TotalCost.String(),
		Outcomes:   outcomes,
	}
}

// AvailabilityResponse answers stock level queries.
type AvailabilityResponse struct {
	ItemID    string  `json:"itemId"`
	Quantity  float64 `json:"quantity"`
	Requested float64 `json:"requested,omitempty"`
	Available bool    `json:"available"`
}

// CorrectionResponse reports one reconciled item.
type CorrectionResponse struct {
	ItemID       string  `json:"itemId"`
	SKU          string  `json:"sku"`
	Stored       float64 `json:"stored"`
	Actual       float64 `json:"actual"`
	NewQuantity  float64 `json:"newQuantity"`
	Renormalized bool    `json:"renormalized"`
}

// FromCorrections converts reconciliation corrections.
func FromCorrections(corrections []ledger.Correction) []CorrectionResponse {
	out := make([]CorrectionResponse, 0, len(corrections))
	for _, c := range corrections {
		out = append(out, CorrectionResponse{
			ItemID:       c.ItemID.String(),
			SKU:          c.SKU,
			Stored:       c.Stored.Float64(),
			Actual:       c.Actual.Float64(),
			NewQuantity:  c.NewQuantity.Float64(),
			Renormalized: c.Renormalized,
		})
	}
	return out
}
