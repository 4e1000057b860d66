package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory/internal/repo"
)

type orderRequest struct {
	CustomerID uint   `json:"customer_id" binding:"required"`
	ProductID  uint   `json:"product_id" binding:"required"`
	UserID     uint   `json:"user_id" binding:"required"`
	Quantity   int64  `json:"quantity"`
	Status     string `json:"status"`
}

func (r orderRequest) input() repo.OrderInput {
	return repo.OrderInput{
		CustomerID: r.CustomerID,
		ProductID:  r.ProductID,
		UserID:     r.UserID,
		Quantity:   r.Quantity,
		Status:     r.Status,
	}
}

type restockRequest struct {
	SupplierID uint            `json:"supplier_id" binding:"required"`
	ProductID  uint            `json:"product_id" binding:"required"`
	UserID     uint            `json:"user_id" binding:"required"`
	Quantity   int64           `json:"quantity"`
	Payment    decimal.Decimal `json:"payment"`
}

type newProductRequest struct {
	SupplierID  uint            `json:"supplier_id" binding:"required"`
	UserID      uint            `json:"user_id" binding:"required"`
	ProductType string          `json:"product_type"`
	Name        string          `json:"name"`
	Variant     string          `json:"variant"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Payment     decimal.Decimal `json:"payment"`
}

type freshStockRequest struct {
	ProductID uint  `json:"product_id" binding:"required"`
	UserID    uint  `json:"user_id" binding:"required"`
	Quantity  int64 `json:"quantity"`
}

func (s *Server) registerOrder(c *gin.Context) {
	var req orderRequest
	if !bind(c, &req) {
		return
	}
	order, movements, err := s.ledger.RegisterOrder(c.Request.Context(), req.input())
	if err != nil {
		RespondError(c, err)
		return
	}
	s.observe(movements)
	RespondCreated(c, gin.H{"order": order, "movements": movements})
}

func (s *Server) updateOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req orderRequest
	if !bind(c, &req) {
		return
	}
	order, movements, err := s.ledger.UpdateOrder(c.Request.Context(), id, req.input())
	if err != nil {
		RespondError(c, err)
		return
	}
	s.observe(movements)
	RespondOK(c, gin.H{"order": order, "movements": movements})
}

func (s *Server) deleteOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	movements, err := s.ledger.DeleteOrder(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	s.observe(movements)
	RespondOK(c, gin.H{"deleted": id, "movements": movements})
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := s.ledger.GetOrder(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, order)
}

func (s *Server) listOrders(c *gin.Context) {
	orders, err := s.ledger.ListOrders(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"orders": orders})
}

func (s *Server) restockPurchase(c *gin.Context) {
	var req restockRequest
	if !bind(c, &req) {
		return
	}
	po, movements, err := s.ledger.RestockPurchase(c.Request.Context(), repo.RestockInput{
		SupplierID: req.SupplierID,
		ProductID:  req.ProductID,
		UserID:     req.UserID,
		Quantity:   req.Quantity,
		Payment:    req.Payment,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	s.observe(movements)
	RespondCreated(c, gin.H{"purchase_order": po, "movements": movements})
}

func (s *Server) newProductPurchase(c *gin.Context) {
	var req newProductRequest
	if !bind(c, &req) {
		return
	}
	po, product, movements, err := s.ledger.RegisterNewProductPurchase(c.Request.Context(), repo.NewProductInput{
		SupplierID:  req.SupplierID,
		UserID:      req.UserID,
		ProductType: req.ProductType,
		Name:        req.Name,
		Variant:     req.Variant,
		Quantity:    req.Quantity,
		Price:       req.Price,
		Payment:     req.Payment,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	s.observe(movements)
	RespondCreated(c, gin.H{"purchase_order": po, "product": product, "movements": movements})
}

func (s *Server) deletePurchaseOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	movements, err := s.ledger.DeletePurchaseOrder(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	s.observe(movements)
	RespondOK(c, gin.H{"deleted": id, "movements": movements})
}

func (s *Server) getPurchaseOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	po, err := s.ledger.GetPurchaseOrder(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, po)
}

func (s *Server) listPurchaseOrders(c *gin.Context) {
	orders, err := s.ledger.ListPurchaseOrders(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"purchase_orders": orders})
}

func (s *Server) addFreshStock(c *gin.Context) {
	var req freshStockRequest
	if !bind(c, &req) {
		return
	}
	fresh, movements, err := s.ledger.AddFreshStock(c.Request.Context(), repo.FreshStockInput{
		ProductID: req.ProductID,
		UserID:    req.UserID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	s.observe(movements)
	RespondCreated(c, gin.H{"fresh_product": fresh, "movements": movements})
}

func (s *Server) updateFreshStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req freshStockRequest
	if !bind(c, &req) {
		return
	}
	fresh, movements, err := s.ledger.UpdateFreshStock(c.Request.Context(), id, repo.FreshStockInput{
		ProductID: req.ProductID,
		UserID:    req.UserID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	s.observe(movements)
	RespondOK(c, gin.H{"fresh_product": fresh, "movements": movements})
}

func (s *Server) deleteFreshStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	movements, err := s.ledger.DeleteFreshStock(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	s.observe(movements)
	RespondOK(c, gin.H{"deleted": id, "movements": movements})
}

func (s *Server) getFreshStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	fresh, err := s.ledger.GetFreshStock(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, fresh)
}

func (s *Server) listFreshStock(c *gin.Context) {
	rows, err := s.ledger.ListFreshStock(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"fresh_products": rows})
}
