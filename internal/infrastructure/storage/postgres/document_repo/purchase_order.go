// Package document_repo provides PostgreSQL implementations for document
// repositories.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/id"
	"agrostock/internal/domain/receiving"
	"agrostock/internal/infrastructure/storage/postgres"
)

const (
	ordersTable     = "purchase_orders"
	orderLinesTable = "purchase_order_lines"
)

var orderColumns = []string{
	"id", "version", "number", "supplier", "status",
	"ordered_at", "received_at", "created_at", "updated_at",
}

var lineColumns = []string{
	"line_id", "order_id", "line_no", "item_id",
	"quantity", "unit_cost", "expires_on",
}

// PurchaseOrderRepo implements receiving.Repository.
type PurchaseOrderRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewPurchaseOrderRepo creates a new purchase order repository.
func NewPurchaseOrderRepo(txm *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the order header and all lines.
func (r *PurchaseOrderRepo) Create(ctx context.Context, po *receiving.PurchaseOrder) error {
	q := r.builder.Insert(ordersTable).
		Columns(orderColumns...).
		Values(
			po.ID, po.Version, po.Number, po.Supplier, po.Status,
			po.OrderedAt, po.ReceivedAt, po.CreatedAt, po.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err)
	}

	return r.insertLines(ctx, po)
}

func (r *PurchaseOrderRepo) insertLines(ctx context.Context, po *receiving.PurchaseOrder) error {
	if len(po.Lines) == 0 {
		return nil
	}

	q := r.builder.Insert(orderLinesTable).Columns(lineColumns...)
	for _, ln := range po.Lines {
		q = q.Values(
			ln.LineID, po.ID, ln.LineNo, ln.ItemID,
			ln.Quantity, ln.UnitCost, ln.ExpiresOn,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err)
	}

	return nil
}

// Update rewrites the order header with an optimistic version check.
// Lines are immutable after creation; only the header moves through the
// status lifecycle.
func (r *PurchaseOrderRepo) Update(ctx context.Context, po *receiving.PurchaseOrder) error {
	q := r.builder.Update(ordersTable).
		Set("supplier", po.Supplier).
		Set("status", po.Status).
		Set("received_at", po.ReceivedAt).
		Set("updated_at", po.UpdatedAt).
		Set("version", po.Version).
		Where(squirrel.Eq{"id": po.ID, "version": po.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrencyConflict("purchase_order", po.ID)
	}

	return nil
}

// GetByID returns an order with its lines.
func (r *PurchaseOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*receiving.PurchaseOrder, error) {
	q := r.builder.Select(orderColumns...).
		From(ordersTable).
		Where(squirrel.Eq{"id": orderID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var po receiving.PurchaseOrder
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &po, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("purchase_order", orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	lines, err := r.getLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	po.Lines = lines

	return &po, nil
}

func (r *PurchaseOrderRepo) getLines(ctx context.Context, orderID id.ID) ([]receiving.PurchaseOrderLine, error) {
	q := r.builder.Select(lineColumns...).
		From(orderLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []receiving.PurchaseOrderLine
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}

	return lines, nil
}

// List returns order headers matching the filter, newest first. Lines are
// not loaded; use GetByID for the full document.
func (r *PurchaseOrderRepo) List(ctx context.Context, filter receiving.ListFilter) ([]receiving.PurchaseOrder, error) {
	q := r.builder.Select(orderColumns...).From(ordersTable)

	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.Supplier != "" {
		q = q.Where(squirrel.Eq{"supplier": filter.Supplier})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"ordered_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"ordered_at": *filter.To})
	}

	q = q.OrderBy("ordered_at DESC", "id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var orders []receiving.PurchaseOrder
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &orders, sql, args...); err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}

	return orders, nil
}

// Ensure interface compliance.
var _ receiving.Repository = (*PurchaseOrderRepo)(nil)
