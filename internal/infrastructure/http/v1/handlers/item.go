package handlers

import (
	"github.com/gin-gonic/gin"

	"agrostock/internal/domain/catalogs/item"
	"agrostock/internal/domain/integration"
	"agrostock/internal/infrastructure/http/v1/dto"
)

// ItemHandler serves the item catalog endpoints.
type ItemHandler struct {
	*BaseHandler
	service *item.Service
	client  *integration.Client
}

// NewItemHandler creates a new item handler.
func NewItemHandler(base *BaseHandler, service *item.Service, client *integration.Client) *ItemHandler {
	return &ItemHandler{BaseHandler: base, service: service, client: client}
}

// Create handles POST /items.
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), it); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, it.ID.String())
}

// Update handles PATCH /items/:id.
func (h *ItemHandler) Update(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it, err := h.service.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	req.ApplyTo(it)
	if err := h.service.Update(c.Request.Context(), it); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromItem(it))
}

// Get handles GET /items/:id.
func (h *ItemHandler) Get(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	it, err := h.service.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromItem(it))
}

// GetBySKU handles GET /items/sku/:sku.
func (h *ItemHandler) GetBySKU(c *gin.Context) {
	it, err := h.service.GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromItem(it))
}

// List handles GET /items.
func (h *ItemHandler) List(c *gin.Context) {
	var page dto.PaginationRequest
	if !h.BindQuery(c, &page) {
		return
	}
	page.Defaults()

	items, err := h.service.List(c.Request.Context(), item.ListFilter{
		Category:        c.Query("category"),
		IncludeInactive: c.Query("includeInactive") == "true",
		Limit:           page.PageSize,
		Offset:          page.Offset(),
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	out := make([]dto.ItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, dto.FromItem(it))
	}
	h.OK(c, dto.ListResponse{Items: out})
}

// LowStock handles GET /items/low-stock.
func (h *ItemHandler) LowStock(c *gin.Context) {
	alerts, err := h.client.LowStockAlerts(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	out := make([]dto.AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, dto.FromAlert(a))
	}
	h.OK(c, dto.ListResponse{Items: out})
}

// Deactivate handles DELETE /items/:id.
func (h *ItemHandler) Deactivate(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), itemID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
