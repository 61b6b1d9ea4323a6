package ledger

import (
	"context"
	"testing"

	"agrostock/internal/core/entity"
	"agrostock/internal/core/types"
)

func planTotal(plan []batchReset) types.Quantity {
	var total types.Quantity
	for _, p := range plan {
		total += p.newRemaining
	}
	return total
}

func TestPlanRenormalization_ProportionalSplit(t *testing.T) {
	batches := []entity.StockBatch{
		testBatch(day(0), 30, 40, "5.00"),
		testBatch(day(1), 10, 20, "6.00"),
	}

	// 40 on the books scaled down to 20: 3:1 split.
	plan, ok := planRenormalization(batches, qty(20))
	if !ok {
		t.Fatal("expected plan")
	}
	if plan[0].newRemaining != qty(15) || plan[1].newRemaining != qty(5) {
		t.Errorf("split = %s/%s, want 15/5", plan[0].newRemaining, plan[1].newRemaining)
	}
}

func TestPlanRenormalization_RemainderAddsUpExactly(t *testing.T) {
	batches := []entity.StockBatch{
		testBatch(day(0), 1, 10, "5.00"),
		testBatch(day(1), 1, 10, "5.00"),
		testBatch(day(2), 1, 10, "5.00"),
	}

	// 10/3 per batch has no exact share; the total still must hit 10.
	plan, ok := planRenormalization(batches, qty(10))
	if !ok {
		t.Fatal("expected plan")
	}
	if got := planTotal(plan); got != qty(10) {
		t.Errorf("plan total = %s, want exactly 10", got)
	}
	for _, p := range plan {
		if p.newRemaining > p.batch.Purchased || p.newRemaining.IsNegative() {
			t.Errorf("batch %s outside 0..purchased: %s", p.batch.ID, p.newRemaining)
		}
	}
}

func TestPlanRenormalization_CapsAtPurchasedAndRedistributes(t *testing.T) {
	batches := []entity.StockBatch{
		testBatch(day(0), 9, 10, "5.00"),
		testBatch(day(1), 1, 30, "6.00"),
	}

	// Proportional shares would push the first batch over its purchased
	// quantity; the excess must spill into the second batch's headroom.
	plan, ok := planRenormalization(batches, qty(20))
	if !ok {
		t.Fatal("expected plan")
	}
	if plan[0].newRemaining != qty(10) {
		t.Errorf("first batch = %s, want capped at 10", plan[0].newRemaining)
	}
	if plan[1].newRemaining != qty(10) {
		t.Errorf("second batch = %s, want 10 after overflow", plan[1].newRemaining)
	}
}

func TestPlanRenormalization_TargetExceedsCapacity(t *testing.T) {
	batches := []entity.StockBatch{
		testBatch(day(0), 5, 10, "5.00"),
	}

	if _, ok := planRenormalization(batches, qty(11)); ok {
		t.Error("target above total purchased must be rejected")
	}
}

func TestPlanRenormalization_ZeroActualFillsFIFO(t *testing.T) {
	batches := []entity.StockBatch{
		testBatch(day(0), 0, 6, "5.00"),
		testBatch(day(1), 0, 10, "6.00"),
	}

	plan, ok := planRenormalization(batches, qty(9))
	if !ok {
		t.Fatal("expected plan")
	}
	if plan[0].newRemaining != qty(6) || plan[1].newRemaining != qty(3) {
		t.Errorf("fill = %s/%s, want 6/3 oldest first", plan[0].newRemaining, plan[1].newRemaining)
	}
}

func TestReconcile_TrustsBatchesByDefault(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(30), qty(30), money("5.00"))
	repo.items[itemID].Quantity = qty(42) // simulated drift

	corrections, err := svc.Reconcile(context.Background(), ReconcileOptions{})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	c := corrections[0]
	if c.Stored != qty(42) || c.Actual != qty(30) || c.NewQuantity != qty(30) {
		t.Errorf("correction = %+v", c)
	}
	if c.Renormalized {
		t.Error("default mode must not touch batches")
	}
	if repo.items[itemID].Quantity != qty(30) {
		t.Errorf("aggregate = %s, want 30", repo.items[itemID].Quantity)
	}

	// The repair leaves one item-level entry, no batch was touched.
	if len(repo.txlog) != 1 {
		t.Fatalf("transaction log has %d entries, want 1", len(repo.txlog))
	}
	tx := repo.txlog[0]
	if tx.BatchID != nil || tx.Kind != entity.KindAdjustment {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if tx.Delta != qty(-12) || tx.BalanceAfter != qty(30) {
		t.Errorf("delta = %s, balance = %s; want -12, 30", tx.Delta, tx.BalanceAfter)
	}
}

func TestReconcile_Renormalize(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(30), qty(40), money("5.00"))
	repo.addBatch(itemID, day(1), qty(10), qty(20), money("6.00"))
	repo.items[itemID].Quantity = qty(20) // stored aggregate is the truth here

	corrections, err := svc.Reconcile(context.Background(), ReconcileOptions{Renormalize: true})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(corrections) != 1 || !corrections[0].Renormalized {
		t.Fatalf("corrections = %+v", corrections)
	}
	if corrections[0].NewQuantity != qty(20) {
		t.Errorf("new quantity = %s, want 20", corrections[0].NewQuantity)
	}

	var total types.Quantity
	for _, b := range repo.batches {
		total += b.Remaining
	}
	if total != qty(20) {
		t.Errorf("batch remainders sum to %s, want 20", total)
	}
	for _, tx := range repo.txlog {
		if tx.Kind != entity.KindAdjustment || tx.Module != "reconciliation" {
			t.Errorf("unexpected transaction %+v", tx)
		}
	}
}

func TestReconcile_RenormalizeFallsBackWhenImpossible(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(5), qty(10), money("5.00"))
	repo.items[itemID].Quantity = qty(50) // beyond anything ever purchased

	corrections, err := svc.Reconcile(context.Background(), ReconcileOptions{Renormalize: true})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(corrections) != 1 {
		t.Fatalf("corrections = %d, want 1", len(corrections))
	}
	if corrections[0].Renormalized {
		t.Error("impossible target must fall back to trusting batches")
	}
	if repo.items[itemID].Quantity != qty(5) {
		t.Errorf("aggregate = %s, want 5", repo.items[itemID].Quantity)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(30), qty(30), money("5.00"))
	repo.items[itemID].Quantity = qty(25)

	if _, err := svc.Reconcile(context.Background(), ReconcileOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	again, err := svc.Reconcile(context.Background(), ReconcileOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second run found %d drifts, want 0", len(again))
	}
}
