package ledger

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
	"agrostock/internal/domain/catalogs/item"
)

// memRepo is an in-memory Repository for service tests. The paired
// memTxManager serializes writers with a single mutex and restores a
// snapshot on rollback, which is enough to exercise the service's
// atomicity and retry behavior without a database.
type memRepo struct {
	items   map[id.ID]*item.Item
	batches []*entity.StockBatch
	txlog   []entity.StockTransaction

	// conflictsLeft makes GetItemForUpdate fail with a concurrency
	// conflict this many times before succeeding.
	conflictsLeft int

	// lockOrder records row-lock acquisitions ("item" / "batch") so
	// tests can assert the item-then-batch discipline.
	lockOrder []string
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[id.ID]*item.Item)}
}

func (r *memRepo) addItem(sku string) id.ID {
	it := item.NewItem(sku, sku, "test", "kg")
	r.items[it.ID] = it
	return it.ID
}

func (r *memRepo) addBatch(itemID id.ID, acquired time.Time, remaining, purchased types.Quantity, cost types.Money) *entity.StockBatch {
	b := entity.NewStockBatch(itemID, "B-"+acquired.Format("0102"), purchased, cost, acquired, nil)
	b.Remaining = remaining
	r.batches = append(r.batches, &b)
	r.recompute(itemID)
	return &b
}

func (r *memRepo) recompute(itemID id.ID) types.Quantity {
	var total types.Quantity
	for _, b := range r.batches {
		if b.ItemID == itemID && b.Active {
			total += b.Remaining
		}
	}
	if it, ok := r.items[itemID]; ok {
		it.Quantity = total
	}
	return total
}

func (r *memRepo) snapshot() *memRepo {
	cp := newMemRepo()
	for k, v := range r.items {
		c := *v
		cp.items[k] = &c
	}
	cp.batches = make([]*entity.StockBatch, len(r.batches))
	for i, b := range r.batches {
		c := *b
		cp.batches[i] = &c
	}
	cp.txlog = append([]entity.StockTransaction(nil), r.txlog...)
	cp.conflictsLeft = r.conflictsLeft
	return cp
}

func (r *memRepo) restore(snap *memRepo) {
	r.items = snap.items
	r.batches = snap.batches
	r.txlog = snap.txlog
	// conflictsLeft is deliberately not restored: an injected conflict
	// stays consumed across the retry, like a real transient race.
}

func (r *memRepo) GetItemForUpdate(ctx context.Context, itemID id.ID) (*item.Item, error) {
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return nil, apperror.NewConcurrencyConflict("item", itemID)
	}
	r.lockOrder = append(r.lockOrder, "item")
	return r.GetItem(ctx, itemID)
}

func (r *memRepo) GetItem(_ context.Context, itemID id.ID) (*item.Item, error) {
	it, ok := r.items[itemID]
	if !ok {
		return nil, apperror.NewItemNotFound(itemID)
	}
	c := *it
	return &c, nil
}

func (r *memRepo) ListConsumableBatches(_ context.Context, itemID id.ID) ([]entity.StockBatch, error) {
	var out []entity.StockBatch
	for _, b := range r.batches {
		if b.ItemID == itemID && b.Active && b.Remaining > 0 {
			out = append(out, *b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AcquiredOn.Equal(out[j].AcquiredOn) {
			return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
		}
		return out[i].AcquiredOn.Before(out[j].AcquiredOn)
	})
	return out, nil
}

func (r *memRepo) GetLatestActiveBatch(_ context.Context, itemID id.ID) (*entity.StockBatch, error) {
	var latest *entity.StockBatch
	for _, b := range r.batches {
		if b.ItemID != itemID || !b.Active {
			continue
		}
		if latest == nil || b.AcquiredOn.After(latest.AcquiredOn) {
			latest = b
		}
	}
	if latest == nil {
		return nil, apperror.NewNotFound("batch", itemID)
	}
	c := *latest
	return &c, nil
}

func (r *memRepo) GetBatch(_ context.Context, batchID id.ID) (*entity.StockBatch, error) {
	for _, b := range r.batches {
		if b.ID == batchID {
			c := *b
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound("batch", batchID)
}

func (r *memRepo) GetBatchForUpdate(ctx context.Context, batchID id.ID) (*entity.StockBatch, error) {
	r.lockOrder = append(r.lockOrder, "batch")
	return r.GetBatch(ctx, batchID)
}

func (r *memRepo) CreateBatch(_ context.Context, batch *entity.StockBatch) error {
	c := *batch
	r.batches = append(r.batches, &c)
	return nil
}

func (r *memRepo) SetBatchRemaining(_ context.Context, batchID id.ID, remaining types.Quantity) error {
	for _, b := range r.batches {
		if b.ID == batchID {
			b.Remaining = remaining
			return nil
		}
	}
	return apperror.NewNotFound("batch", batchID)
}

func (r *memRepo) GrowBatch(_ context.Context, batchID id.ID, delta types.Quantity) error {
	for _, b := range r.batches {
		if b.ID == batchID {
			b.Purchased += delta
			b.Remaining += delta
			return nil
		}
	}
	return apperror.NewNotFound("batch", batchID)
}

func (r *memRepo) DeactivateBatch(_ context.Context, batchID id.ID) error {
	for _, b := range r.batches {
		if b.ID == batchID {
			b.Active = false
			return nil
		}
	}
	return apperror.NewNotFound("batch", batchID)
}

func (r *memRepo) ListBatches(_ context.Context, itemID id.ID) ([]entity.StockBatch, error) {
	var out []entity.StockBatch
	for _, b := range r.batches {
		if b.ItemID == itemID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memRepo) ListExpiringBatches(_ context.Context, by time.Time) ([]entity.StockBatch, error) {
	var out []entity.StockBatch
	for _, b := range r.batches {
		if b.Active && b.Remaining > 0 && b.ExpiresOn != nil && !b.ExpiresOn.After(by) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memRepo) AppendTransactions(_ context.Context, txs []entity.StockTransaction) error {
	r.txlog = append(r.txlog, txs...)
	return nil
}

func (r *memRepo) ListTransactions(_ context.Context, filter TransactionFilter) ([]entity.StockTransaction, error) {
	var out []entity.StockTransaction
	for _, t := range r.txlog {
		if filter.ItemID != nil && t.ItemID != *filter.ItemID {
			continue
		}
		if filter.Kind != nil && t.Kind != *filter.Kind {
			continue
		}
		if filter.Module != "" && t.Module != filter.Module {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memRepo) RecomputeItemQuantity(_ context.Context, itemID id.ID) (types.Quantity, error) {
	if _, ok := r.items[itemID]; !ok {
		return 0, apperror.NewItemNotFound(itemID)
	}
	return r.recompute(itemID), nil
}

func (r *memRepo) ListDrifts(_ context.Context) ([]Drift, error) {
	var out []Drift
	for _, it := range r.items {
		var actual types.Quantity
		for _, b := range r.batches {
			if b.ItemID == it.ID && b.Active {
				actual += b.Remaining
			}
		}
		if it.Quantity != actual {
			out = append(out, Drift{ItemID: it.ID, SKU: it.SKU, Stored: it.Quantity, Actual: actual})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

var _ Repository = (*memRepo)(nil)

type memTxKey struct{}

// memTxManager serializes transactions with one mutex and rolls a failed
// transaction back by restoring a pre-transaction snapshot of the repo.
type memTxManager struct {
	mu   sync.Mutex
	repo *memRepo
}

func newMemTxManager(repo *memRepo) *memTxManager {
	return &memTxManager{repo: repo}
}

func (m *memTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.InTransaction(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.repo.snapshot()
	err := fn(context.WithValue(ctx, memTxKey{}, true))
	if err != nil {
		m.repo.restore(snap)
	}
	return err
}

func (m *memTxManager) InTransaction(ctx context.Context) bool {
	v, _ := ctx.Value(memTxKey{}).(bool)
	return v
}

// memJournal captures journal records for assertions.
type memJournal struct {
	mu      sync.Mutex
	records []string
}

func (j *memJournal) Record(_ context.Context, op string, _ id.ID, _ any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, op)
	return nil
}

// failingJournal always errors, for asserting journal writes are
// best-effort.
type failingJournal struct {
	calls int
}

func (j *failingJournal) Record(context.Context, string, id.ID, any) error {
	j.calls++
	return errors.New("journal store unavailable")
}

// newTestService wires a service over fresh in-memory fakes.
func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, newMemTxManager(repo), nil), repo
}
