package ledger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/types"
)

func qty(v float64) types.Quantity {
	return types.NewQuantityFromFloat64(v)
}

func money(s string) types.Money {
	return types.MustMoney(s)
}

var testOrigin = entity.Origin{Module: "biofloc", Reference: "tank-3", ActorID: "tester"}

func TestConsume_FIFOAcrossBatches(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	first := repo.addBatch(itemID, day(0), qty(10), qty(10), money("5.00"))
	second := repo.addBatch(itemID, day(5), qty(20), qty(20), money("6.00"))

	res, err := svc.Consume(context.Background(), itemID, qty(25), testOrigin)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	if len(res.Takes) != 2 {
		t.Fatalf("takes = %d, want 2", len(res.Takes))
	}
	if res.Takes[0].BatchID != first.ID || res.Takes[0].Quantity != qty(10) {
		t.Errorf("first take = %s from %v", res.Takes[0].Quantity, res.Takes[0].BatchID)
	}
	if res.Takes[1].BatchID != second.ID || res.Takes[1].Quantity != qty(15) {
		t.Errorf("second take = %s from %v", res.Takes[1].Quantity, res.Takes[1].BatchID)
	}

	// 10 * 5.00 + 15 * 6.00 = 140, blended 5.60/unit.
	if !res.TotalCost.Equal(money("140")) {
		t.Errorf("total cost = %s, want 140", res.TotalCost)
	}
	if !res.AverageUnitCost.Equal(money("5.6")) {
		t.Errorf("average cost = %s, want 5.6", res.AverageUnitCost)
	}
	if res.NewQuantity != qty(5) {
		t.Errorf("new quantity = %s, want 5", res.NewQuantity)
	}

	it := repo.items[itemID]
	if it.Quantity != qty(5) {
		t.Errorf("aggregate = %s, want 5", it.Quantity)
	}
	if len(repo.txlog) != 2 {
		t.Fatalf("transaction log has %d entries, want 2", len(repo.txlog))
	}
	var delta types.Quantity
	for _, tx := range repo.txlog {
		if tx.Kind != entity.KindConsumption {
			t.Errorf("kind = %s, want consumption", tx.Kind)
		}
		if tx.Module != "biofloc" || tx.Reference != "tank-3" {
			t.Errorf("origin not carried: %+v", tx.Origin)
		}
		delta += tx.Delta
	}
	if delta != qty(25).Neg() {
		t.Errorf("log delta sum = %s, want -25", delta)
	}
}

func TestConsume_InsufficientLeavesStateUntouched(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	b := repo.addBatch(itemID, day(0), qty(5), qty(10), money("5.00"))

	_, err := svc.Consume(context.Background(), itemID, qty(8), testOrigin)
	if !apperror.IsInsufficientStock(err) {
		t.Fatalf("err = %v, want INSUFFICIENT_STOCK", err)
	}
	ae, ok := apperror.AsAppError(err)
	if !ok {
		t.Fatal("not an app error")
	}
	if ae.Details["available"] != qty(5).String() {
		t.Errorf("available detail = %v, want %s", ae.Details["available"], qty(5))
	}

	for _, batch := range repo.batches {
		if batch.ID == b.ID && batch.Remaining != qty(5) {
			t.Errorf("batch remaining = %s, want 5 (no partial take)", batch.Remaining)
		}
	}
	if repo.items[itemID].Quantity != qty(5) {
		t.Errorf("aggregate = %s, want 5", repo.items[itemID].Quantity)
	}
	if len(repo.txlog) != 0 {
		t.Errorf("transaction log has %d entries, want 0", len(repo.txlog))
	}
}

func TestConsume_Validation(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")

	if _, err := svc.Consume(context.Background(), itemID, 0, testOrigin); err == nil {
		t.Error("zero quantity accepted")
	}
	if _, err := svc.Consume(context.Background(), itemID, qty(-3), testOrigin); err == nil {
		t.Error("negative quantity accepted")
	}
}

func TestConsume_InactiveItem(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(10), qty(10), money("5.00"))
	repo.items[itemID].Active = false

	_, err := svc.Consume(context.Background(), itemID, qty(1), testOrigin)
	if !apperror.IsNotFound(err) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestAdd(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("CHEM-001")

	expires := day(90)
	b, err := svc.Add(context.Background(), itemID, qty(40), money("12.50"), day(0), &expires, "PO-100-1", testOrigin)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if b.Remaining != qty(40) || b.Purchased != qty(40) {
		t.Errorf("batch quantities = %s/%s, want 40/40", b.Remaining, b.Purchased)
	}
	if b.BatchNo != "PO-100-1" {
		t.Errorf("batch no = %q", b.BatchNo)
	}
	if repo.items[itemID].Quantity != qty(40) {
		t.Errorf("aggregate = %s, want 40", repo.items[itemID].Quantity)
	}
	if len(repo.txlog) != 1 || repo.txlog[0].Kind != entity.KindAddition {
		t.Fatalf("expected one addition transaction, got %+v", repo.txlog)
	}
	if repo.txlog[0].Delta != qty(40) {
		t.Errorf("delta = %s, want +40", repo.txlog[0].Delta)
	}
}

func TestAdd_Validation(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("CHEM-001")

	if _, err := svc.Add(context.Background(), itemID, 0, money("1"), day(0), nil, "", testOrigin); err == nil {
		t.Error("zero quantity accepted")
	}
	if _, err := svc.Add(context.Background(), itemID, qty(1), money("-1"), day(0), nil, "", testOrigin); err == nil {
		t.Error("negative cost accepted")
	}
}

func TestExpireBatch(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	keep := repo.addBatch(itemID, day(0), qty(10), qty(10), money("5.00"))
	stale := repo.addBatch(itemID, day(1), qty(4), qty(20), money("6.00"))

	b, err := svc.ExpireBatch(context.Background(), stale.ID, testOrigin)
	if err != nil {
		t.Fatalf("ExpireBatch: %v", err)
	}
	if b.Active || !b.Remaining.IsZero() {
		t.Errorf("expired batch: active=%v remaining=%s", b.Active, b.Remaining)
	}
	if repo.items[itemID].Quantity != qty(10) {
		t.Errorf("aggregate = %s, want 10", repo.items[itemID].Quantity)
	}
	if len(repo.txlog) != 1 || repo.txlog[0].Kind != entity.KindExpiration {
		t.Fatalf("expected one expiration transaction, got %+v", repo.txlog)
	}
	if repo.txlog[0].Delta != qty(4).Neg() {
		t.Errorf("delta = %s, want -4", repo.txlog[0].Delta)
	}

	// Expiring it again is a conflict, and draws still work on the rest.
	if _, err := svc.ExpireBatch(context.Background(), stale.ID, testOrigin); err == nil {
		t.Error("second expiration accepted")
	}
	if _, err := svc.Consume(context.Background(), itemID, qty(10), testOrigin); err != nil {
		t.Errorf("consume from remaining batch %v: %v", keep.ID, err)
	}
}

func TestExpireBatch_LocksItemBeforeBatch(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("CHEM-001")
	b := repo.addBatch(itemID, day(0), qty(4), qty(4), money("5.00"))

	if _, err := svc.ExpireBatch(context.Background(), b.ID, testOrigin); err != nil {
		t.Fatalf("ExpireBatch: %v", err)
	}

	// Same discipline as consume and adjust: item row first, batch rows
	// after, so two writers can never wait on each other in a cycle.
	if got := strings.Join(repo.lockOrder, ","); got != "item,batch" {
		t.Errorf("lock order = %q, want item,batch", got)
	}
}

func TestConsume_SameDayBatchesOrderedByID(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	// Two deliveries booked on the same day: the earlier-created batch
	// (smaller time-ordered id) must drain first.
	first := repo.addBatch(itemID, day(0), qty(10), qty(10), money("5.00"))
	second := repo.addBatch(itemID, day(0), qty(10), qty(10), money("6.00"))

	res, err := svc.Consume(context.Background(), itemID, qty(12), testOrigin)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(res.Takes) != 2 {
		t.Fatalf("takes = %d, want 2", len(res.Takes))
	}
	if res.Takes[0].BatchID != first.ID || res.Takes[0].Quantity != qty(10) {
		t.Errorf("first take = %s from %v, want the older batch drained", res.Takes[0].Quantity, res.Takes[0].BatchID)
	}
	if res.Takes[1].BatchID != second.ID || res.Takes[1].Quantity != qty(2) {
		t.Errorf("second take = %s from %v", res.Takes[1].Quantity, res.Takes[1].BatchID)
	}
}

func TestAdjust_DecreaseClamps(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(6), qty(10), money("5.00"))
	repo.addBatch(itemID, day(2), qty(4), qty(4), money("6.00"))

	delta := qty(-15)
	res, err := svc.Adjust(context.Background(), itemID, AdjustmentSpec{Delta: &delta, Reason: "spoilage"}, testOrigin)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if res.Mode != AdjustDecrease {
		t.Errorf("mode = %s", res.Mode)
	}
	if !res.Clamped {
		t.Error("expected clamped result")
	}
	if res.AppliedDelta != qty(-10) {
		t.Errorf("applied delta = %s, want -10", res.AppliedDelta)
	}
	if !res.NewQuantity.IsZero() {
		t.Errorf("new quantity = %s, want 0", res.NewQuantity)
	}
	for _, tx := range repo.txlog {
		if tx.Kind != entity.KindAdjustment {
			t.Errorf("kind = %s, want adjustment", tx.Kind)
		}
		if tx.Note != "spoilage" {
			t.Errorf("note = %q, want reason folded in", tx.Note)
		}
	}

	// Consume has no clamp: the same overdraw fails outright.
	repo2 := newMemRepo()
	item2 := repo2.addItem("FEED-001")
	repo2.addBatch(item2, day(0), qty(10), qty(10), money("5.00"))
	svc2 := NewService(repo2, newMemTxManager(repo2), nil)
	if _, err := svc2.Consume(context.Background(), item2, qty(15), testOrigin); !apperror.IsInsufficientStock(err) {
		t.Errorf("consume overdraw: err = %v, want INSUFFICIENT_STOCK", err)
	}
}

func TestAdjust_IncreaseGrowsMatchingBatch(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	latest := repo.addBatch(itemID, day(5), qty(8), qty(10), money("6.00"))

	delta := qty(2)
	cost := money("6.00")
	res, err := svc.Adjust(context.Background(), itemID, AdjustmentSpec{Delta: &delta, UnitCost: &cost}, testOrigin)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if res.Batch == nil || res.Batch.ID != latest.ID {
		t.Fatal("expected the latest batch to grow")
	}
	if res.Batch.Remaining != qty(10) || res.Batch.Purchased != qty(12) {
		t.Errorf("batch = %s/%s, want 10/12", res.Batch.Remaining, res.Batch.Purchased)
	}
	if res.NewQuantity != qty(10) {
		t.Errorf("new quantity = %s, want 10", res.NewQuantity)
	}
}

func TestAdjust_IncreaseWithDifferentCostOpensBatch(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	latest := repo.addBatch(itemID, day(5), qty(8), qty(10), money("6.00"))

	delta := qty(2)
	cost := money("7.25")
	res, err := svc.Adjust(context.Background(), itemID, AdjustmentSpec{Delta: &delta, UnitCost: &cost}, testOrigin)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if res.Batch == nil || res.Batch.ID == latest.ID {
		t.Fatal("expected a new adjustment batch")
	}
	if !res.Batch.UnitCost.Equal(cost) {
		t.Errorf("unit cost = %s, want 7.25", res.Batch.UnitCost)
	}
	if res.NewQuantity != qty(10) {
		t.Errorf("new quantity = %s, want 10", res.NewQuantity)
	}
}

func TestAdjust_Recount(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(6), qty(10), money("5.00"))
	repo.addBatch(itemID, day(2), qty(4), qty(4), money("6.00"))

	// Counted less than the books: FIFO write-down.
	newTotal := qty(7)
	res, err := svc.Adjust(context.Background(), itemID, AdjustmentSpec{NewTotal: &newTotal}, testOrigin)
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if res.Mode != AdjustRecount {
		t.Errorf("mode = %s, want recount", res.Mode)
	}
	if res.AppliedDelta != qty(-3) {
		t.Errorf("applied delta = %s, want -3", res.AppliedDelta)
	}
	if res.NewQuantity != qty(7) {
		t.Errorf("new quantity = %s, want 7", res.NewQuantity)
	}

	// Counting exactly what the books say changes nothing.
	logBefore := len(repo.txlog)
	same := qty(7)
	res, err = svc.Adjust(context.Background(), itemID, AdjustmentSpec{NewTotal: &same}, testOrigin)
	if err != nil {
		t.Fatalf("Adjust no-op: %v", err)
	}
	if res.AppliedDelta != 0 || res.Clamped {
		t.Errorf("no-op recount produced delta %s", res.AppliedDelta)
	}
	if len(repo.txlog) != logBefore {
		t.Errorf("no-op recount appended %d transactions", len(repo.txlog)-logBefore)
	}
}

func TestAdjust_SpecValidation(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")

	d := qty(5)
	nt := qty(10)
	zero := types.Quantity(0)
	neg := qty(-1)

	tests := []struct {
		name string
		spec AdjustmentSpec
	}{
		{"neither", AdjustmentSpec{}},
		{"both", AdjustmentSpec{Delta: &d, NewTotal: &nt}},
		{"zero delta", AdjustmentSpec{Delta: &zero}},
		{"negative total", AdjustmentSpec{NewTotal: &neg}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Adjust(context.Background(), itemID, tc.spec, testOrigin); err == nil {
				t.Error("invalid spec accepted")
			}
		})
	}
}

func TestConsumeMany_PartialFailure(t *testing.T) {
	svc, repo := newTestService()
	feed := repo.addItem("FEED-001")
	chem := repo.addItem("CHEM-001")
	repo.addBatch(feed, day(0), qty(50), qty(50), money("5.00"))
	repo.addBatch(chem, day(0), qty(2), qty(2), money("10.00"))

	res := svc.ConsumeMany(context.Background(), []Requirement{
		{ItemID: feed, Quantity: qty(10)},
		{ItemID: chem, Quantity: qty(5)},
	}, testOrigin)

	if res.Successful != 1 || res.Failed != 1 {
		t.Fatalf("successful=%d failed=%d, want 1/1", res.Successful, res.Failed)
	}
	if !res.TotalCost.Equal(money("50")) {
		t.Errorf("total cost = %s, want 50", res.TotalCost)
	}
	if res.Outcomes[0].Err != nil || res.Outcomes[0].Result == nil {
		t.Error("feed outcome should have succeeded")
	}
	if !apperror.IsInsufficientStock(res.Outcomes[1].Err) {
		t.Errorf("chem outcome err = %v", res.Outcomes[1].Err)
	}

	// The failed item keeps its stock, the successful one was drawn down.
	if repo.items[feed].Quantity != qty(40) {
		t.Errorf("feed aggregate = %s, want 40", repo.items[feed].Quantity)
	}
	if repo.items[chem].Quantity != qty(2) {
		t.Errorf("chem aggregate = %s, want 2", repo.items[chem].Quantity)
	}
}

func TestConsume_RetriesOnConflict(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(10), qty(10), money("5.00"))

	repo.conflictsLeft = maxConflictRetries - 1
	if _, err := svc.Consume(context.Background(), itemID, qty(3), testOrigin); err != nil {
		t.Fatalf("expected retries to absorb %d conflicts: %v", maxConflictRetries-1, err)
	}

	repo.conflictsLeft = maxConflictRetries
	_, err := svc.Consume(context.Background(), itemID, qty(3), testOrigin)
	if !apperror.IsConcurrencyConflict(err) {
		t.Fatalf("err = %v, want CONCURRENCY_CONFLICT after retries exhausted", err)
	}
}

func TestConsume_NoRetryInsideAmbientTransaction(t *testing.T) {
	repo := newMemRepo()
	txm := newMemTxManager(repo)
	svc := NewService(repo, txm, nil)
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(10), qty(10), money("5.00"))

	repo.conflictsLeft = 1
	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		_, err := svc.Consume(ctx, itemID, qty(3), testOrigin)
		return err
	})
	if !apperror.IsConcurrencyConflict(err) {
		t.Fatalf("err = %v, want conflict surfaced to the enclosing transaction", err)
	}
}

func TestConsume_Concurrent(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(25), qty(25), money("5.00"))
	repo.addBatch(itemID, day(1), qty(15), qty(15), money("5.00"))

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(context.Background(), itemID, qty(5), testOrigin)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.IsInsufficientStock(err):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	// 40 on hand, ten draws of 5: exactly eight can win.
	if ok != 8 || insufficient != 2 {
		t.Errorf("ok=%d insufficient=%d, want 8/2", ok, insufficient)
	}
	if !repo.items[itemID].Quantity.IsZero() {
		t.Errorf("aggregate = %s, want 0", repo.items[itemID].Quantity)
	}
	var total types.Quantity
	for _, b := range repo.batches {
		total += b.Remaining
	}
	if !total.IsZero() {
		t.Errorf("batch remainders sum to %s, want 0", total)
	}
}

func TestCurrentQuantityAndAvailability(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(12), qty(12), money("5.00"))

	got, err := svc.CurrentQuantity(context.Background(), itemID)
	if err != nil || got != qty(12) {
		t.Errorf("CurrentQuantity = %s, %v", got, err)
	}
	for _, tc := range []struct {
		ask  types.Quantity
		want bool
	}{
		{qty(12), true},
		{qty(12.0001), false},
		{qty(1), true},
	} {
		ok, err := svc.IsAvailable(context.Background(), itemID, tc.ask)
		if err != nil || ok != tc.want {
			t.Errorf("IsAvailable(%s) = %v, %v; want %v", tc.ask, ok, err, tc.want)
		}
	}
}

func TestListExpiringBatches(t *testing.T) {
	svc, repo := newTestService()
	itemID := repo.addItem("CHEM-001")
	soon := time.Now().UTC().Add(10 * 24 * time.Hour)
	later := time.Now().UTC().Add(90 * 24 * time.Hour)

	b1 := entity.NewStockBatch(itemID, "X1", qty(5), money("1"), day(0), &soon)
	b2 := entity.NewStockBatch(itemID, "X2", qty(5), money("1"), day(0), &later)
	repo.batches = append(repo.batches, &b1, &b2)

	got, err := svc.ListExpiringBatches(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("ListExpiringBatches: %v", err)
	}
	if len(got) != 1 || got[0].ID != b1.ID {
		t.Errorf("expected only the soon-expiring batch, got %d", len(got))
	}
}

func TestJournalIsBestEffort(t *testing.T) {
	repo := newMemRepo()
	j := &memJournal{}
	svc := NewService(repo, newMemTxManager(repo), j)
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(10), qty(10), money("5.00"))

	if _, err := svc.Consume(context.Background(), itemID, qty(2), testOrigin); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if len(j.records) != 1 || j.records[0] != "consume" {
		t.Errorf("journal records = %v", j.records)
	}
}

func TestJournalFailureDoesNotFailOperation(t *testing.T) {
	repo := newMemRepo()
	j := &failingJournal{}
	svc := NewService(repo, newMemTxManager(repo), j)
	itemID := repo.addItem("FEED-001")
	repo.addBatch(itemID, day(0), qty(10), qty(10), money("5.00"))

	res, err := svc.Consume(context.Background(), itemID, qty(2), testOrigin)
	if err != nil {
		t.Fatalf("Consume must survive a journal outage: %v", err)
	}
	if res.NewQuantity != qty(8) {
		t.Errorf("new quantity = %s, want 8", res.NewQuantity)
	}
	if repo.items[itemID].Quantity != qty(8) {
		t.Errorf("aggregate = %s, want 8", repo.items[itemID].Quantity)
	}
	if j.calls != 1 {
		t.Errorf("journal attempted %d times, want 1", j.calls)
	}
}
