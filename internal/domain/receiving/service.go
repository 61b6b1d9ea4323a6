package receiving

import (
	"context"
	"fmt"
	"time"

	"agrostock/internal/core/apperror"
	appctx "agrostock/internal/core/context"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/tx"
	"agrostock/pkg/logger"
)

// Service manages the purchase order lifecycle. Receiving an order is the
// main path stock enters the system: every line becomes a batch through
// the ledger, all within one transaction.
type Service struct {
	repo   Repository
	ledger Ledger
	txm    tx.Manager
}

func NewService(repo Repository, ledger Ledger, txm tx.Manager) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		txm:    txm,
	}
}

// Create registers a new draft order.
func (s *Service) Create(ctx context.Context, po *PurchaseOrder) error {
	if err := po.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, po); err != nil {
		return fmt.Errorf("create purchase order: %w", err)
	}
	logger.Info(ctx, "purchase order created",
		"order_id", po.ID,
		"number", po.Number,
		"supplier", po.Supplier,
		"lines", len(po.Lines),
	)
	return nil
}

// Place moves a draft order to ordered.
func (s *Service) Place(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	return s.transition(ctx, orderID, StatusDraft, StatusOrdered, nil)
}

// Cancel cancels an order that has not been received yet.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	var po *PurchaseOrder
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		loaded, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		switch loaded.Status {
		case StatusReceived:
			return apperror.NewConflict("received order cannot be cancelled").
				WithDetail("orderId", orderID)
		case StatusCancelled:
			return apperror.NewConflict("order is already cancelled").
				WithDetail("orderId", orderID)
		}
		loaded.Status = StatusCancelled
		loaded.Touch()
		if err := s.repo.Update(ctx, loaded); err != nil {
			return err
		}
		po = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "purchase order cancelled", "order_id", orderID, "number", po.Number)
	return po, nil
}

// Receive marks an ordered order as received and opens one stock batch per
// line. The status change and every batch land in the same transaction;
// any failing line rolls the whole receipt back.
func (s *Service) Receive(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	now := time.Now().UTC()
	po, err := s.transition(ctx, orderID, StatusOrdered, StatusReceived, func(ctx context.Context, po *PurchaseOrder) error {
		origin := entity.Origin{
			Module:    "receiving",
			Reference: po.Number,
			ActorID:   actorID(ctx),
		}
		for _, ln := range po.Lines {
			if _, err := s.ledger.Add(ctx, ln.ItemID, ln.Quantity, ln.UnitCost, now, ln.ExpiresOn, ln.BatchNo(po.Number), origin); err != nil {
				return fmt.Errorf("receive line %d: %w", ln.LineNo, err)
			}
		}
		po.ReceivedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "purchase order received",
		"order_id", orderID,
		"number", po.Number,
		"lines", len(po.Lines),
		"total", po.Total(),
	)
	return po, nil
}

// transition loads the order, checks the expected status, runs the hook
// and saves, all in one transaction.
func (s *Service) transition(ctx context.Context, orderID id.ID, from, to OrderStatus, hook func(ctx context.Context, po *PurchaseOrder) error) (*PurchaseOrder, error) {
	var po *PurchaseOrder
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		loaded, err := s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if loaded.Status != from {
			return apperror.NewConflict(fmt.Sprintf("order is %s, expected %s", loaded.Status, from)).
				WithDetail("orderId", orderID)
		}
		if hook != nil {
			if err := hook(ctx, loaded); err != nil {
				return err
			}
		}
		loaded.Status = to
		loaded.Touch()
		if err := s.repo.Update(ctx, loaded); err != nil {
			return err
		}
		po = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return po, nil
}

// GetByID returns an order with its lines.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	return s.repo.GetByID(ctx, orderID)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	return s.repo.List(ctx, filter)
}

func actorID(ctx context.Context) string {
	return appctx.GetActorID(ctx)
}
