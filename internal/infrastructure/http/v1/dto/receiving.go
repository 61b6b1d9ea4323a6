package dto

import (
	"time"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
	"agrostock/internal/domain/receiving"
)

// --- Request DTOs ---

// CreateOrderRequest represents a request to create a purchase order.
type CreateOrderRequest struct {
	Number    string             `json:"number" binding:"required"`
	Supplier  string             `json:"supplier" binding:"required"`
	OrderedAt *time.Time         `json:"orderedAt,omitempty"`
	Lines     []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// OrderLineRequest represents a line in the create request.
type OrderLineRequest struct {
	ItemID    string     `json:"itemId" binding:"required"`
	Quantity  float64    `json:"quantity" binding:"required,gt=0"`
	UnitCost  string     `json:"unitCost" binding:"required"`
	ExpiresOn *time.Time `json:"expiresOn,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateOrderRequest) ToEntity() (*receiving.PurchaseOrder, error) {
	orderedAt := time.Now().UTC()
	if r.OrderedAt != nil {
		orderedAt = *r.OrderedAt
	}

	lines := make([]receiving.PurchaseOrderLine, 0, len(r.Lines))
	for i, ln := range r.Lines {
		itemID, err := id.Parse(ln.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid item id").
				WithDetail("lineNo", i+1).
				WithDetail("itemId", ln.ItemID)
		}
		cost, err := types.NewMoneyFromString(ln.UnitCost)
		if err != nil {
			return nil, apperror.NewValidation("invalid unit cost").
				WithDetail("lineNo", i+1).
				WithDetail("unitCost", ln.UnitCost)
		}
		lines = append(lines, receiving.PurchaseOrderLine{
			ItemID:    itemID,
			Quantity:  types.NewQuantityFromFloat64(ln.Quantity),
			UnitCost:  cost,
			ExpiresOn: ln.ExpiresOn,
		})
	}

	po := receiving.NewPurchaseOrder(r.Number, r.Supplier, orderedAt, lines)
	return &po, nil
}

// --- Response DTOs ---

// OrderLineResponse represents an order line.
type OrderLineResponse struct {
	LineID    string     `json:"lineId"`
	LineNo    int        `json:"lineNo"`
	ItemID    string     `json:"itemId"`
	Quantity  float64    `json:"quantity"`
	UnitCost  string     `json:"unitCost"`
	ExpiresOn *time.Time `json:"expiresOn,omitempty"`
}

// OrderResponse represents a purchase order.
type OrderResponse struct {
	ID         string              `json:"id"`
	Number     string              `json:"number"`
	Supplier   string              `json:"supplier"`
	Status     string              `json:"status"`
	OrderedAt  time.Time           `json:"orderedAt"`
	ReceivedAt *time.Time          `json:"receivedAt,omitempty"`
	Total      string              `json:"total,omitempty"`
	Lines      []OrderLineResponse `json:"lines,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// FromOrder converts entity to response DTO.
func FromOrder(po *receiving.PurchaseOrder) OrderResponse {
	resp := OrderResponse{
		ID:         po.ID.String(),
		Number:     po.Number,
		Supplier:   po.Supplier,
		Status:     string(po.Status),
		OrderedAt:  po.OrderedAt,
		ReceivedAt: po.ReceivedAt,
		CreatedAt:  po.CreatedAt,
		UpdatedAt:  po.UpdatedAt,
	}
	if len(po.Lines) > 0 {
		resp.Total = po.Total().String()
		resp.Lines = make([]OrderLineResponse, 0, len(po.Lines))
		for _, ln := range po.Lines {
			resp.Lines = append(resp.Lines, OrderLineResponse{
				LineID:    ln.LineID.String(),
				LineNo:    ln.LineNo,
				ItemID:    ln.ItemID.String(),
				Quantity:  ln.Quantity.Float64(),
				UnitCost:  ln.UnitCost.String(),
				ExpiresOn: ln.ExpiresOn,
			})
		}
	}
	return resp
}

// FromOrders converts order headers.
func FromOrders(orders []receiving.PurchaseOrder) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, FromOrder(&orders[i]))
	}
	return out
}
