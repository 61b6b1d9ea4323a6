package entity

import (
	"time"

	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
)

// TransactionKind classifies a quantity change in the stock transaction log.
type TransactionKind string

const (
	// KindAddition increases stock (purchase receipt, manual addition)
	KindAddition TransactionKind = "addition"
	// KindConsumption decreases stock through the FIFO deduction path
	KindConsumption TransactionKind = "consumption"
	// KindAdjustment records a manual correction (recount, write-off, reconciliation)
	KindAdjustment TransactionKind = "adjustment"
	// KindExpiration writes off the remainder of an expired batch
	KindExpiration TransactionKind = "expiration"
)

// Origin is caller-supplied context attached to every transaction for
// audit and reporting. The ledger stores it verbatim and only ever
// filters on the exact-match fields (Module, Reference).
type Origin struct {
	// Module is the calling module name (e.g. "biofloc", "inventory-api")
	Module string `db:"module" json:"module"`

	// Reference is an optional external identifier (tank, purchase order line)
	Reference string `db:"reference" json:"reference,omitempty"`

	// ActorID identifies the user or system performing the operation
	ActorID string `db:"actor_id" json:"actorId,omitempty"`

	// Note is free-text context
	Note string `db:"note" json:"note,omitempty"`
}

// StockBatch is one discrete acquisition of stock for an item.
// Acquisition date defines FIFO consumption order; unit cost is immutable
// once set. Exhausted batches stay on record with remaining = 0.
type StockBatch struct {
	ID     id.ID `db:"id" json:"id"`
	ItemID id.ID `db:"item_id" json:"itemId"`

	// BatchNo is a human-readable label (supplier lot, PO line reference)
	BatchNo string `db:"batch_no" json:"batchNo"`

	// Purchased is the originally acquired quantity
	Purchased types.Quantity `db:"purchased_qty" json:"purchasedQty"`

	// Remaining is the yet-unconsumed quantity. Invariant: 0 <= Remaining <= Purchased.
	Remaining types.Quantity `db:"remaining_qty" json:"remainingQty"`

	// UnitCost is the negotiated cost per unit
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// AcquiredOn defines FIFO order (ties broken by ID, which is time-ordered)
	AcquiredOn time.Time  `db:"acquired_on" json:"acquiredOn"`
	ExpiresOn  *time.Time `db:"expires_on" json:"expiresOn,omitempty"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockBatch creates a batch with remaining = purchased.
func NewStockBatch(itemID id.ID, batchNo string, qty types.Quantity, unitCost types.Money, acquiredOn time.Time, expiresOn *time.Time) StockBatch {
	return StockBatch{
		ID:         id.New(),
		ItemID:     itemID,
		BatchNo:    batchNo,
		Purchased:  qty,
		Remaining:  qty,
		UnitCost:   unitCost,
		AcquiredOn: acquiredOn,
		ExpiresOn:  expiresOn,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}
}

// Consumed returns how much of the batch has been used.
func (b *StockBatch) Consumed() types.Quantity {
	return b.Purchased - b.Remaining
}

// IsExhausted reports whether nothing is left to consume.
func (b *StockBatch) IsExhausted() bool {
	return b.Remaining <= 0
}

// StockTransaction is an immutable audit record of one quantity change.
// Every batch mutation appends exactly one transaction per touched batch,
// in the same atomic unit as the mutation itself.
type StockTransaction struct {
	ID     id.ID `db:"id" json:"id"`
	ItemID id.ID `db:"item_id" json:"itemId"`

	// BatchID is nil for item-level adjustments (e.g. reconciliation)
	BatchID *id.ID `db:"batch_id" json:"batchId,omitempty"`

	Kind TransactionKind `db:"kind" json:"kind"`

	// Delta is the signed quantity change (negative for consumption)
	Delta types.Quantity `db:"delta" json:"delta"`

	// BalanceAfter is the batch remaining (or item aggregate for item-level
	// entries) immediately after this change was applied
	BalanceAfter types.Quantity `db:"balance_after" json:"balanceAfter"`

	UnitCost  types.Money `db:"unit_cost" json:"unitCost"`
	TotalCost types.Money `db:"total_cost" json:"totalCost"`

	Origin

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockTransaction builds a transaction entry; TotalCost is derived
// from the absolute delta and unit cost.
func NewStockTransaction(itemID id.ID, batchID *id.ID, kind TransactionKind, delta, balanceAfter types.Quantity, unitCost types.Money, origin Origin) StockTransaction {
	return StockTransaction{
		ID:           id.New(),
		ItemID:       itemID,
		BatchID:      batchID,
		Kind:         kind,
		Delta:        delta,
		BalanceAfter: balanceAfter,
		UnitCost:     unitCost,
		TotalCost:    unitCost.Mul(delta.Abs().Decimal()),
		Origin:       origin,
		CreatedAt:    time.Now().UTC(),
	}
}
