package ledger

import (
	"testing"
	"time"

	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
)

func day(n int) time.Time {
	return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testBatch(acquired time.Time, remaining, purchased float64, cost string) entity.StockBatch {
	return entity.StockBatch{
		ID:         id.New(),
		ItemID:     id.New(),
		Purchased:  types.NewQuantityFromFloat64(purchased),
		Remaining:  types.NewQuantityFromFloat64(remaining),
		UnitCost:   types.MustMoney(cost),
		AcquiredOn: acquired,
		Active:     true,
	}
}

func TestPlanConsumption_WalksOldestFirst(t *testing.T) {
	// Three deliveries: 10kg left at $5, 20kg at $6, 15kg at $7.
	// A 25kg draw empties the first batch, takes 15 from the second
	// and leaves the third untouched.
	batches := []entity.StockBatch{
		testBatch(day(0), 10, 50, "5.00"),
		testBatch(day(5), 20, 20, "6.00"),
		testBatch(day(9), 15, 15, "7.00"),
	}

	plan, available := planConsumption(batches, types.NewQuantityFromFloat64(25))
	if plan == nil {
		t.Fatalf("expected a plan, available=%s", available)
	}
	if available != types.NewQuantityFromFloat64(45) {
		t.Errorf("available = %s, want 45", available)
	}
	if len(plan) != 2 {
		t.Fatalf("expected 2 takes, got %d", len(plan))
	}
	if plan[0].batch.ID != batches[0].ID || plan[0].qty != types.NewQuantityFromFloat64(10) {
		t.Errorf("first take wrong: %v %s", plan[0].batch.ID, plan[0].qty)
	}
	if plan[1].batch.ID != batches[1].ID || plan[1].qty != types.NewQuantityFromFloat64(15) {
		t.Errorf("second take wrong: %v %s", plan[1].batch.ID, plan[1].qty)
	}
}

func TestPlanConsumption_ExactDrain(t *testing.T) {
	batches := []entity.StockBatch{
		testBatch(day(0), 10, 10, "5.00"),
		testBatch(day(1), 5, 5, "6.00"),
	}

	plan, available := planConsumption(batches, types.NewQuantityFromFloat64(15))
	if plan == nil {
		t.Fatalf("expected a plan, available=%s", available)
	}
	var total types.Quantity
	for _, p := range plan {
		total += p.qty
	}
	if total != types.NewQuantityFromFloat64(15) {
		t.Errorf("plan total = %s, want 15", total)
	}
}

func TestPlanConsumption_Insufficient(t *testing.T) {
	batches := []entity.StockBatch{
		testBatch(day(0), 5, 5, "5.00"),
	}

	plan, available := planConsumption(batches, types.NewQuantityFromFloat64(1000))
	if plan != nil {
		t.Fatalf("expected no plan, got %d takes", len(plan))
	}
	if available != types.NewQuantityFromFloat64(5) {
		t.Errorf("available = %s, want 5", available)
	}
}

func TestPlanConsumption_SkipsEmptyBatches(t *testing.T) {
	batches := []entity.StockBatch{
		testBatch(day(0), 0, 10, "5.00"),
		testBatch(day(1), 8, 8, "6.00"),
	}

	plan, _ := planConsumption(batches, types.NewQuantityFromFloat64(4))
	if len(plan) != 1 {
		t.Fatalf("expected 1 take, got %d", len(plan))
	}
	if plan[0].batch.ID != batches[1].ID {
		t.Error("empty batch should not appear in the plan")
	}
}

func TestPlanConsumption_FractionalQuantities(t *testing.T) {
	batches := []entity.StockBatch{
		testBatch(day(0), 0.75, 1, "10.00"),
		testBatch(day(1), 2.5, 2.5, "12.00"),
	}

	plan, _ := planConsumption(batches, types.MustQuantity("1.25"))
	if len(plan) != 2 {
		t.Fatalf("expected 2 takes, got %d", len(plan))
	}
	if plan[0].qty != types.MustQuantity("0.75") {
		t.Errorf("first take = %s, want 0.75", plan[0].qty)
	}
	if plan[1].qty != types.MustQuantity("0.5") {
		t.Errorf("second take = %s, want 0.5", plan[1].qty)
	}
}
