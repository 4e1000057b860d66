package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stockledger/inventory/internal/repo"
)

type productRequest struct {
	Code        string          `json:"code"`
	Variant     string          `json:"variant"`
	ProductType string          `json:"product_type"`
	Name        string          `json:"name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type productUpdateRequest struct {
	Code        string           `json:"code"`
	Variant     string           `json:"variant"`
	ProductType string           `json:"product_type"`
	Name        string           `json:"name"`
	Quantity    *int64           `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
}

type priceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (s *Server) registerProduct(c *gin.Context) {
	var req productRequest
	if !bind(c, &req) {
		return
	}
	product, err := s.catalog.RegisterProduct(c.Request.Context(), repo.ProductInput{
		Code:        req.Code,
		Variant:     req.Variant,
		ProductType: req.ProductType,
		Name:        req.Name,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, product)
}

func (s *Server) listProducts(c *gin.Context) {
	products, err := s.catalog.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"products": products})
}

func (s *Server) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	product, err := s.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, product)
}

func (s *Server) updateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req productUpdateRequest
	if !bind(c, &req) {
		return
	}
	product, changed, err := s.catalog.UpdateProduct(c.Request.Context(), id, repo.ProductUpdate{
		Code:        req.Code,
		Variant:     req.Variant,
		ProductType: req.ProductType,
		Name:        req.Name,
		Quantity:    req.Quantity,
		Price:       req.Price,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	for _, field := range changed {
		if field == "price" {
			s.metrics.PriceChanged()
		}
	}
	RespondOK(c, gin.H{"product": product, "changed": changed})
}

func (s *Server) deleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}

func (s *Server) changePrice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req priceRequest
	if !bind(c, &req) {
		return
	}
	product, changed, err := s.catalog.ChangePrice(c.Request.Context(), id, req.Price)
	if err != nil {
		RespondError(c, err)
		return
	}
	if changed {
		s.metrics.PriceChanged()
	}
	RespondOK(c, gin.H{"product": product, "changed": changed})
}

func (s *Server) priceHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entries, err := s.catalog.ListPriceHistory(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"product_id": id, "history": entries})
}
