package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"agrostock/internal/core/apperror"
	"agrostock/internal/core/entity"
	"agrostock/internal/core/id"
	"agrostock/internal/core/types"
	"agrostock/internal/domain/ledger"
	"agrostock/internal/infrastructure/http/v1/dto"
)

// StockHandler serves the batch ledger endpoints.
type StockHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

func (h *StockHandler) origin(c *gin.Context, reference, note string) entity.Origin {
	return entity.Origin{
		Module:    h.GetModule(c),
		Reference: reference,
		ActorID:   h.GetActorID(c),
		Note:      note,
	}
}

// Add handles POST /items/:id/stock/add.
func (h *StockHandler) Add(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.AddStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	unitCost, err := types.NewMoneyFromString(req.UnitCost)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid unit cost").WithDetail("unitCost", req.UnitCost))
		return
	}

	acquiredOn := time.Now().UTC()
	if req.AcquiredOn != nil {
		acquiredOn = *req.AcquiredOn
	}

	batch, err := h.service.Add(c.Request.Context(), itemID,
		types.NewQuantityFromFloat64(req.Quantity), unitCost,
		acquiredOn, req.ExpiresOn, req.BatchNo,
		h.origin(c, req.Reference, req.Note),
	)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBatch(*batch))
}

// Consume handles POST /items/:id/stock/consume.
func (h *StockHandler) Consume(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ConsumeRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Consume(c.Request.Context(), itemID,
		types.NewQuantityFromFloat64(req.Quantity),
		h.origin(c, req.Reference, req.Note),
	)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromConsumption(res))
}

// Adjust handles POST /items/:id/stock/adjust.
func (h *StockHandler) Adjust(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.AdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}

	spec, err := req.ToSpec()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Adjust(c.Request.Context(), itemID, spec, h.origin(c, req.Reference, ""))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAdjustment(res))
}

// ConsumeMany handles POST /stock/consume-many.
func (h *StockHandler) ConsumeMany(c *gin.Context) {
	var req dto.ConsumeManyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	reqs := make([]ledger.Requirement, 0, len(req.Items))
	for i, it := range req.Items {
		itemID, err := id.Parse(it.ItemID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid item id").
				WithDetail("index", i).
				WithDetail("itemId", it.ItemID))
			return
		}
		reqs = append(reqs, ledger.Requirement{
			ItemID:   itemID,
			Quantity: types.NewQuantityFromFloat64(it.Quantity),
		})
	}

	res := h.service.ConsumeMany(c.Request.Context(), reqs, h.origin(c, req.Reference, req.Note))
	h.OK(c, dto.FromBatchOperation(res))
}

// Availability handles GET /items/:id/stock/availability.
func (h *StockHandler) Availability(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	current, err := h.service.CurrentQuantity(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.AvailabilityResponse{
		ItemID:    itemID.String(),
		Quantity:  current.Float64(),
		Available: current.IsPositive(),
	}
	if q := c.Query("quantity"); q != "" {
		requested, err := types.NewQuantityFromString(q)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid quantity").WithDetail("quantity", q))
			return
		}
		resp.Requested = requested.Float64()
		resp.Available = current >= requested
	}

	h.OK(c, resp)
}

// Batches handles GET /items/:id/batches.
func (h *StockHandler) Batches(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	batches, err := h.service.Batches(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: dto.FromBatches(batches)})
}

// Transactions handles GET /stock/transactions.
func (h *StockHandler) Transactions(c *gin.Context) {
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	filter := ledger.TransactionFilter{
		Module:    c.Query("module"),
		Reference: c.Query("reference"),
		Limit:     page.PageSize,
		Offset:    page.Offset(),
	}

	if v := c.Query("itemId"); v != "" {
		itemID, err := id.Parse(v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid item id").WithDetail("itemId", v))
			return
		}
		filter.ItemID = &itemID
	}
	if v := c.Query("batchId"); v != "" {
		batchID, err := id.Parse(v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid batch id").WithDetail("batchId", v))
			return
		}
		filter.BatchID = &batchID
	}
	if v := c.Query("kind"); v != "" {
		kind := entity.TransactionKind(v)
		filter.Kind = &kind
	}
	if v := c.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid from date").WithDetail("from", v))
			return
		}
		filter.From = &from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid to date").WithDetail("to", v))
			return
		}
		filter.To = &to
	}

	txs, err := h.service.Transactions(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	out := make([]dto.TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, dto.FromTransaction(t))
	}
	h.OK(c, dto.ListResponse{Items: out})
}

// Expiring handles GET /stock/expiring.
func (h *StockHandler) Expiring(c *gin.Context) {
	days := h.ParseIntQuery(c, "days", 30)

	batches, err := h.service.ListExpiringBatches(c.Request.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: dto.FromBatches(batches)})
}

// ExpireBatch handles POST /stock/batches/:id/expire.
func (h *StockHandler) ExpireBatch(c *gin.Context) {
	batchID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ConsumeRequest
	// Body is optional for expiration.
	_ = c.ShouldBindJSON(&req)

	batch, err := h.service.ExpireBatch(c.Request.Context(), batchID, h.origin(c, req.Reference, req.Note))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromBatch(*batch))
}

// Reconcile handles POST /stock/reconcile.
func (h *StockHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	_ = c.ShouldBindJSON(&req)

	corrections, err := h.service.Reconcile(c.Request.Context(), ledger.ReconcileOptions{
		Renormalize: req.Renormalize,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: dto.FromCorrections(corrections)})
}
