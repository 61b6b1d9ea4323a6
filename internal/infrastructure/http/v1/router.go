// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"agrostock/internal/domain/catalogs/item"
	"agrostock/internal/domain/integration"
	"agrostock/internal/domain/ledger"
	"agrostock/internal/domain/receiving"
	"agrostock/internal/infrastructure/http/v1/handlers"
	"agrostock/internal/infrastructure/http/v1/middleware"
	"agrostock/pkg/logger"
)

// RouterConfig holds the wired services the router exposes.
type RouterConfig struct {
	// Pool is the database pool (health checks only).
	Pool *pgxpool.Pool

	// Logger for request logging.
	Logger *logger.Logger

	ItemService      *item.Service
	LedgerService    *ledger.Service
	ReceivingService *receiving.Service
	Integration      *integration.Client
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	// API v1
	base := handlers.NewBaseHandler()
	itemHandler := handlers.NewItemHandler(base, cfg.ItemService, cfg.Integration)
	stockHandler := handlers.NewStockHandler(base, cfg.LedgerService)
	receivingHandler := handlers.NewReceivingHandler(base, cfg.ReceivingService)

	api := router.Group("/api/v1")
	api.Use(middleware.Actor())
	{
		items := api.Group("/items")
		{
			items.POST("", itemHandler.Create)
			items.GET("", itemHandler.List)
			items.GET("/low-stock", itemHandler.LowStock)
			items.GET("/sku/:sku", itemHandler.GetBySKU)
			items.GET("/:id", itemHandler.Get)
			items.PATCH("/:id", itemHandler.Update)
			items.DELETE("/:id", itemHandler.Deactivate)

			items.POST("/:id/stock/add", stockHandler.Add)
			items.POST("/:id/stock/consume", stockHandler.Consume)
			items.POST("/:id/stock/adjust", stockHandler.Adjust)
			items.GET("/:id/stock/availability", stockHandler.Availability)
			items.GET("/:id/batches", stockHandler.Batches)
		}

		stock := api.Group("/stock")
		{
			stock.POST("/consume-many", stockHandler.ConsumeMany)
			stock.GET("/transactions", stockHandler.Transactions)
			stock.GET("/expiring", stockHandler.Expiring)
			stock.POST("/batches/:id/expire", stockHandler.ExpireBatch)
			stock.POST("/reconcile", stockHandler.Reconcile)
		}

		orders := api.Group("/purchase-orders")
		{
			orders.POST("", receivingHandler.Create)
			orders.GET("", receivingHandler.List)
			orders.GET("/:id", receivingHandler.Get)
			orders.POST("/:id/place", receivingHandler.Place)
			orders.POST("/:id/receive", receivingHandler.Receive)
			orders.POST("/:id/cancel", receivingHandler.Cancel)
		}
	}

	return router
}
