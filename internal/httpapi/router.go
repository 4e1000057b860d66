package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stockledger/inventory/internal/apperr"
	"github.com/stockledger/inventory/internal/metrics"
	"github.com/stockledger/inventory/internal/repo"
	"go.uber.org/zap"
)

// HealthChecker checks the service's dependencies.
type HealthChecker interface {
	CheckAll(ctx context.Context) (string, error)
}

type Options struct {
	Catalog     *repo.CatalogRepository
	Ledger      *repo.LedgerRepository
	Reports     *repo.ReportRepository
	Directory   *repo.DirectoryRepository
	Health      HealthChecker
	Metrics     *metrics.Metrics
	Idempotency IdempotencyStore
	CORSOrigins []string
	Log         *zap.Logger
}

// Server exposes the inventory operations over HTTP.
type Server struct {
	catalog     *repo.CatalogRepository
	ledger      *repo.LedgerRepository
	reports     *repo.ReportRepository
	directory   *repo.DirectoryRepository
	health      HealthChecker
	metrics     *metrics.Metrics
	idempotency IdempotencyStore
	corsOrigins []string
	log         *zap.Logger
	now         func() time.Time
}

func NewServer(opts Options) *Server {
	return &Server{
		catalog:     opts.Catalog,
		ledger:      opts.Ledger,
		reports:     opts.Reports,
		directory:   opts.Directory,
		health:      opts.Health,
		metrics:     opts.Metrics,
		idempotency: opts.Idempotency,
		corsOrigins: opts.CORSOrigins,
		log:         opts.Log,
		now:         time.Now,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(s.log), Metrics(s.metrics))
	if len(s.corsOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = s.corsOrigins
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", headerIdempotencyKey, headerRequestID)
		cfg.ExposeHeaders = []string{headerRequestID}
		r.Use(cors.New(cfg))
	}

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api/v1")
	api.Use(Idempotency(s.idempotency, s.log))

	api.POST("/products", s.registerProduct)
	api.GET("/products", s.listProducts)
	api.GET("/products/:id", s.getProduct)
	api.PUT("/products/:id", s.updateProduct)
	api.DELETE("/products/:id", s.deleteProduct)
	api.PUT("/products/:id/price", s.changePrice)
	api.GET("/products/:id/price-history", s.priceHistory)

	api.POST("/orders", s.registerOrder)
	api.GET("/orders", s.listOrders)
	api.GET("/orders/:id", s.getOrder)
	api.PUT("/orders/:id", s.updateOrder)
	api.DELETE("/orders/:id", s.deleteOrder)

	api.POST("/purchase-orders/restock", s.restockPurchase)
	api.POST("/purchase-orders/new-product", s.newProductPurchase)
	api.GET("/purchase-orders", s.listPurchaseOrders)
	api.GET("/purchase-orders/:id", s.getPurchaseOrder)
	api.DELETE("/purchase-orders/:id", s.deletePurchaseOrder)

	api.POST("/fresh-products", s.addFreshStock)
	api.GET("/fresh-products", s.listFreshStock)
	api.GET("/fresh-products/:id", s.getFreshStock)
	api.PUT("/fresh-products/:id", s.updateFreshStock)
	api.DELETE("/fresh-products/:id", s.deleteFreshStock)

	api.POST("/customers", s.registerCustomer)
	api.GET("/customers", s.listCustomers)
	api.GET("/customers/:id", s.getCustomer)
	api.POST("/suppliers", s.registerSupplier)
	api.GET("/suppliers", s.listSuppliers)
	api.GET("/suppliers/:id", s.getSupplier)
	api.POST("/users", s.registerUser)
	api.GET("/users", s.listUsers)
	api.GET("/users/:id", s.getUser)

	api.GET("/reports/inventory", s.inventoryReport)
	api.GET("/reports/sales", s.salesReport)
	api.GET("/reports/sales/total", s.totalSales)
	api.GET("/reports/sales/by-product", s.salesByProduct)

	api.GET("/charts/seasonality", s.seasonality)
	api.GET("/charts/daily-sales", s.dailySales)
	api.GET("/charts/monthly-sales", s.monthlySales)
	api.GET("/charts/yearly-sales", s.yearlySales)
	api.GET("/charts/product-revenue", s.productRevenue)

	return r
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		if name, err := s.health.CheckAll(c.Request.Context()); err != nil {
			s.log.Error("Health check failed", zap.String("dependency", name), zap.Error(err))
			c.String(http.StatusServiceUnavailable, "unhealthy: %s", name)
			return
		}
	}
	c.String(http.StatusOK, "healthy")
}

var errInvalidID = apperr.InvalidInput("invalid_id", "id must be a positive integer")

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		RespondError(c, errInvalidID)
		return 0, false
	}
	return uint(id), true
}

// bind decodes the JSON body, answering 400 on malformed input.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, apperr.InvalidInput("invalid_body", "invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) observe(movements []repo.Movement) {
	for _, m := range movements {
		s.metrics.ObserveMovement(m.Source, m.Delta)
	}
}
