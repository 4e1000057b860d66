package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stockledger/inventory/internal/apperr"
	"github.com/stockledger/inventory/internal/repo"
)

func (s *Server) inventoryReport(c *gin.Context) {
	rows, err := s.reports.InventoryReport(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"rows": rows})
}

func (s *Server) salesReport(c *gin.Context) {
	rows, err := s.reports.SalesReport(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"rows": rows})
}

func (s *Server) totalSales(c *gin.Context) {
	total, err := s.reports.TotalSales(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"total_sales": total})
}

func (s *Server) salesByProduct(c *gin.Context) {
	rows, err := s.reports.SalesByProduct(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"rows": rows})
}

func (s *Server) productRevenue(c *gin.Context) {
	rows, err := s.reports.ProductRevenue(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"rows": rows})
}

// location reads the tz query parameter, defaulting to UTC.
func location(c *gin.Context) (*time.Location, bool) {
	name := c.Query("tz")
	if name == "" {
		return time.UTC, true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		RespondError(c, apperr.InvalidInput("invalid_timezone", "unknown time zone %q", name))
		return nil, false
	}
	return loc, true
}

func (s *Server) seasonality(c *gin.Context) {
	loc, ok := location(c)
	if !ok {
		return
	}
	year := s.now().In(loc).Year()
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			RespondError(c, apperr.InvalidInput("invalid_year", "year must be a non-negative integer"))
			return
		}
		year = parsed
	}
	series, err := s.reports.Seasonality(c.Request.Context(), year, loc)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"year": year, "series": series})
}

type bucketFunc func(*gin.Context, time.Time) ([]repo.SalesPoint, error)

func (s *Server) salesChart(c *gin.Context, fn bucketFunc) {
	loc, ok := location(c)
	if !ok {
		return
	}
	points, err := fn(c, s.now().In(loc))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"points": points})
}

func (s *Server) dailySales(c *gin.Context) {
	s.salesChart(c, func(c *gin.Context, now time.Time) ([]repo.SalesPoint, error) {
		return s.reports.DailySales(c.Request.Context(), now)
	})
}

func (s *Server) monthlySales(c *gin.Context) {
	s.salesChart(c, func(c *gin.Context, now time.Time) ([]repo.SalesPoint, error) {
		return s.reports.MonthlySales(c.Request.Context(), now)
	})
}

func (s *Server) yearlySales(c *gin.Context) {
	s.salesChart(c, func(c *gin.Context, now time.Time) ([]repo.SalesPoint, error) {
		return s.reports.YearlySales(c.Request.Context(), now)
	})
}
