package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"agrostock/internal/core/apperror"
	"agrostock/internal/domain/receiving"
	"agrostock/internal/infrastructure/http/v1/dto"
)

// ReceivingHandler serves the purchase order endpoints.
type ReceivingHandler struct {
	*BaseHandler
	service *receiving.Service
}

// NewReceivingHandler creates a new receiving handler.
func NewReceivingHandler(base *BaseHandler, service *receiving.Service) *ReceivingHandler {
	return &ReceivingHandler{BaseHandler: base, service: service}
}

// Create handles POST /purchase-orders.
func (h *ReceivingHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	po, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), po); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, po.ID.String())
}

// Get handles GET /purchase-orders/:id.
func (h *ReceivingHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	po, err := h.service.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(po))
}

// List handles GET /purchase-orders.
func (h *ReceivingHandler) List(c *gin.Context) {
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	filter := receiving.ListFilter{
		Supplier: c.Query("supplier"),
		Limit:    page.PageSize,
		Offset:   page.Offset(),
	}
	if v := c.Query("status"); v != "" {
		status := receiving.OrderStatus(v)
		filter.Status = &status
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

	orders, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ListResponse{Items: dto.FromOrders(orders)})
}

// Place handles POST /purchase-orders/:id/place.
func (h *ReceivingHandler) Place(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	po, err := h.service.Place(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(po))
}

// Receive handles POST /purchase-orders/:id/receive.
func (h *ReceivingHandler) Receive(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	po, err := h.service.Receive(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(po))
}

// Cancel handles POST /purchase-orders/:id/cancel.
func (h *ReceivingHandler) Cancel(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	po, err := h.service.Cancel(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(po))
}
