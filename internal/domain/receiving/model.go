package receiving

import (
	"strconv"
	"strings"
	"time"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
)

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

const (
	StatusDraft     OrderStatus = "draft"
	StatusOrdered   OrderStatus = "ordered"
	StatusReceived  OrderStatus = "received"
	StatusCancelled OrderStatus = "cancelled"
)

// PurchaseOrder is a supplier order. Receiving it opens one stock batch
// per line; the order itself never touches item quantities directly.
type PurchaseOrder struct {
	entity.BaseDocument
	Number     string              `db:"number" json:"number"`
	Supplier   string              `db:"supplier" json:"supplier"`
	Status     OrderStatus         `db:"status" json:"status"`
	OrderedAt  time.Time           `db:"ordered_at" json:"orderedAt"`
	ReceivedAt *time.Time          `db:"received_at" json:"receivedAt,omitempty"`
	Lines      []PurchaseOrderLine `db:"-" json:"lines"`
}

// PurchaseOrderLine is a single ordered position.
type PurchaseOrderLine struct {
	LineID    id.ID          `db:"line_id" json:"lineId"`
	OrderID   id.ID          `db:"order_id" json:"-"`
	LineNo    int            `db:"line_no" json:"lineNo"`
	ItemID    id.ID          `db:"item_id" json:"itemId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitCost  types.Money    `db:"unit_cost" json:"unitCost"`
	ExpiresOn *time.Time     `db:"expires_on" json:"expiresOn,omitempty"`
}

// NewPurchaseOrder creates a draft order with normalized lines.
func NewPurchaseOrder(number, supplier string, orderedAt time.Time, lines []PurchaseOrderLine) PurchaseOrder {
	po := PurchaseOrder{
		BaseDocument: entity.NewBaseDocument(),
		Number:       strings.TrimSpace(number),
		Supplier:     strings.TrimSpace(supplier),
		Status:       StatusDraft,
		OrderedAt:    orderedAt,
		Lines:        lines,
	}
	for i := range po.Lines {
		po.Lines[i].LineID = id.New()
		po.Lines[i].OrderID = po.ID
		po.Lines[i].LineNo = i + 1
	}
	return po
}

func (po *PurchaseOrder) Validate() error {
	if po.Number == "" {
		return apperror.NewValidation("order number is required")
	}
	if po.Supplier == "" {
		return apperror.NewValidation("supplier is required")
	}
	if len(po.Lines) == 0 {
		return apperror.NewValidation("order must have at least one line")
	}
	for _, ln := range po.Lines {
		if id.IsNil(ln.ItemID) {
			return apperror.NewValidation("line item is required").
				WithDetail("lineNo", ln.LineNo)
		}
		if !ln.Quantity.IsPositive() {
			return apperror.NewInvalidQuantity("line quantity must be positive").
				WithDetail("lineNo", ln.LineNo).
				WithDetail("quantity", ln.Quantity.String())
		}
		if ln.UnitCost.IsNegative() {
			return apperror.NewInvalidQuantity("line unit cost must not be negative").
				WithDetail("lineNo", ln.LineNo)
		}
	}
	return nil
}

// Total is the order's value across all lines.
func (po *PurchaseOrder) Total() types.Money {
	total := types.ZeroMoney()
	for _, ln := range po.Lines {
		total = total.Add(ln.UnitCost.Mul(ln.Quantity.Decimal()))
	}
	return total
}

// BatchNo derives the batch number a received line produces.
func (ln PurchaseOrderLine) BatchNo(orderNumber string) string {
	return orderNumber + "-" + strconv.Itoa(ln.LineNo)
}
